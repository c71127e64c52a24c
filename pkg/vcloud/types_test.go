package vcloud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		status    Status
		transient bool
		isError   bool
	}{
		{StatusUnresolved, true, false},
		{StatusPoweringOn, true, false},
		{StatusPoweringOff, true, false},
		{StatusDeleting, true, false},
		{StatusWaitingForInput, true, false},
		{StatusResolved, false, false},
		{StatusDeployed, false, false},
		{StatusPoweredOn, false, false},
		{StatusPoweredOff, false, false},
		{StatusSuspended, false, false},
		{StatusFailedCreation, false, true},
		{StatusInconsistentState, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.Equal(t, tt.transient, tt.status.IsTransient())
			assert.Equal(t, tt.isError, tt.status.IsError())
		})
	}
}

func TestTaskStates(t *testing.T) {
	assert.True(t, (&Task{Status: TaskQueued}).Pending())
	assert.True(t, (&Task{Status: TaskRunning}).Pending())
	assert.True(t, (&Task{Status: TaskSuccess}).Succeeded())
	assert.True(t, (&Task{Status: TaskError}).Failed())
	assert.True(t, (&Task{Status: TaskAborted}).Failed())
	assert.False(t, (&Task{Status: TaskAborted}).Pending())

	assert.False(t, HasPendingTasks(nil))
	assert.False(t, HasPendingTasks([]Task{{Status: TaskSuccess}, {Status: TaskError}}))
	assert.True(t, HasPendingTasks([]Task{{Status: TaskSuccess}, {Status: TaskPreRunning}}))
}

func TestParseAllocationMode(t *testing.T) {
	tests := []struct {
		input string
		want  AllocationMode
		ok    bool
	}{
		{"", AllocationPool, true},
		{"pool", AllocationPool, true},
		{"MANUAL", AllocationManual, true},
		{" dhcp ", AllocationDHCP, true},
		{"None", AllocationNone, true},
		{"static", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseAllocationMode(tt.input)
		assert.Equal(t, tt.ok, ok, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
}

func TestPrimaryConnection(t *testing.T) {
	section := NetworkConnectionSection{
		PrimaryNetworkConnectionIndex: 1,
		Connections: []NetworkConnection{
			{Network: "backend", NetworkConnectionIndex: 0},
			{Network: "frontend", NetworkConnectionIndex: 1},
		},
	}
	primary, ok := section.Primary()
	require.True(t, ok)
	assert.Equal(t, "frontend", primary.Network)

	section.PrimaryNetworkConnectionIndex = 5
	_, ok = section.Primary()
	assert.False(t, ok)
}

func TestURNHelpers(t *testing.T) {
	const id = "4c3a8f1e-7f8b-4b52-9d1a-2b7f5e3c9a10"

	t.Run("ToURN", func(t *testing.T) {
		assert.Equal(t, "urn:vcloud:vm:"+id, ToURN(KindVM, id))
		assert.Equal(t, "urn:vcloud:vm:"+id, ToURN(KindVApp, "urn:vcloud:vm:"+id))
	})

	t.Run("ParseURN", func(t *testing.T) {
		kind, parsed, err := ParseURN("urn:vcloud:vapp:" + id)
		require.NoError(t, err)
		assert.Equal(t, KindVApp, kind)
		assert.Equal(t, id, parsed)

		for _, bad := range []string{"", "vm:" + id, "urn:vcloud:" + id, "urn:vcloud:vm:not-a-uuid"} {
			_, _, err := ParseURN(bad)
			assert.Error(t, err, bad)
		}
	})

	t.Run("NormalizeID", func(t *testing.T) {
		want := "urn:vcloud:vm:" + id
		for _, input := range []string{want, id, "4c3a8f1e7f8b4b529d1a2b7f5e3c9a10"} {
			got, err := NormalizeID(KindVM, input)
			require.NoError(t, err, input)
			assert.Equal(t, want, got, input)
		}

		_, err := NormalizeID(KindVM, "urn:vcloud:vapp:"+id)
		assert.Error(t, err)
		_, err = NormalizeID(KindVM, "web-1")
		assert.Error(t, err)
	})

	t.Run("NewURN", func(t *testing.T) {
		kind, _, err := ParseURN(NewURN(KindTask))
		require.NoError(t, err)
		assert.Equal(t, KindTask, kind)
	})
}

func TestErrorClassification(t *testing.T) {
	notFound := &Error{StatusCode: http.StatusNotFound, Message: "no such vm"}
	minorNotFound := &Error{StatusCode: http.StatusBadRequest, MinorCode: MinorCodeNotFound}
	forbidden := &Error{StatusCode: http.StatusForbidden}
	invalidState := &Error{StatusCode: http.StatusBadRequest, MinorCode: MinorCodeInvalidState}
	busy := &Error{StatusCode: http.StatusBadRequest, MinorCode: MinorCodeBusyEntity}
	conflict := &Error{StatusCode: http.StatusConflict}
	serverFault := &Error{StatusCode: http.StatusServiceUnavailable}
	badRequest := &Error{StatusCode: http.StatusBadRequest, MinorCode: MinorCodeBadRequest}

	wrapped := fmt.Errorf("delete vapp-1: %w", invalidState)

	assert.True(t, IsNotFound(notFound))
	assert.True(t, IsNotFound(minorNotFound))
	assert.True(t, IsNotFound(fmt.Errorf("get: %w", ErrNotFound)))
	assert.True(t, IsUnauthorized(forbidden))
	assert.False(t, IsUnauthorized(notFound))

	assert.True(t, IsConflictState(invalidState))
	assert.True(t, IsConflictState(busy))
	assert.True(t, IsConflictState(conflict))
	assert.True(t, IsConflictState(wrapped))
	assert.False(t, IsConflictState(badRequest))
	assert.False(t, IsConflictState(errors.New("boom")))

	assert.True(t, IsTransient(serverFault))
	assert.True(t, IsTransient(&Error{StatusCode: http.StatusTooManyRequests}))
	assert.True(t, IsTransient(errors.New("connection reset by peer")))
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(notFound))
	assert.False(t, IsTransient(badRequest))
	assert.False(t, IsTransient(ErrOperationNotSupported))
	assert.False(t, IsTransient(context.Canceled))

	assert.Equal(t, "400 INVALID_STATE: ", invalidState.Error())
	assert.Equal(t, "404: no such vm", notFound.Error())
}
