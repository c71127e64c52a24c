package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mhrivnak/vcompute/pkg/compute"
	"github.com/mhrivnak/vcompute/pkg/products"
	"github.com/mhrivnak/vcompute/pkg/retry"
	"github.com/mhrivnak/vcompute/pkg/vcloud"
)

func setupVMTest() (*gin.Engine, *MockComputeService) {
	gin.SetMode(gin.TestMode)

	svc := new(MockComputeService)
	handler := NewVMHandlers(svc, slog.Default())

	router := gin.New()
	router.GET("/api/v1/vms", handler.ListVMs)
	router.POST("/api/v1/vms", handler.LaunchVMs)
	router.GET("/api/v1/vms/:id", handler.GetVM)
	router.DELETE("/api/v1/vms/:id", handler.TerminateVM)
	router.POST("/api/v1/vms/:id/clone", handler.CloneVM)
	router.GET("/api/v1/vapps/:id/vms", handler.ListVAppVMs)
	router.DELETE("/api/v1/vapps/:id", handler.TerminateVApp)

	return router, svc
}

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestListVMs(t *testing.T) {
	router, svc := setupVMTest()

	var vms []compute.VirtualMachine
	for i := 0; i < 30; i++ {
		vms = append(vms, compute.VirtualMachine{ID: fmt.Sprintf("vm-%d", i)})
	}
	svc.On("ListVirtualMachines", mock.Anything).Return(vms, nil)

	t.Run("default page size", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/vms", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		response := decodeBody(t, w)
		assert.Equal(t, float64(30), response["resultTotal"])
		assert.Equal(t, float64(2), response["pageCount"])
		assert.Len(t, response["values"], 25)
	})

	t.Run("second page", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/vms?page=2&pageSize=25", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		values := decodeBody(t, w)["values"].([]interface{})
		require.Len(t, values, 5)
		assert.Equal(t, "vm-25", values[0].(map[string]interface{})["id"])
	})
}

func TestListVMsFailure(t *testing.T) {
	router, svc := setupVMTest()
	svc.On("ListVirtualMachines", mock.Anything).Return(nil, &vcloud.Error{StatusCode: http.StatusBadGateway, Message: "proxy"})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/vms", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "Failed to list virtual machines", decodeBody(t, w)["message"])
}

func TestGetVM(t *testing.T) {
	router, svc := setupVMTest()
	svc.On("GetVirtualMachine", mock.Anything, "vm-1").Return(&compute.VirtualMachine{
		ID:    "vm-1",
		Name:  "web",
		State: compute.VMStateRunning,
	}, nil)
	svc.On("GetVirtualMachine", mock.Anything, "missing").Return(nil, fmt.Errorf("get VM missing: %w", vcloud.ErrNotFound))

	t.Run("found", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/vms/vm-1", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		response := decodeBody(t, w)
		assert.Equal(t, "web", response["name"])
		assert.Equal(t, "running", response["state"])
		assert.NotContains(t, response, "RootPassword")
	})

	t.Run("not found", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/vms/missing", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, float64(http.StatusNotFound), decodeBody(t, w)["code"])
	})

	t.Run("malformed id", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/vms/bad%20id", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLaunchVMs(t *testing.T) {
	product := products.Default().ForHardware(2048, 2)

	t.Run("launches with the catalog product", func(t *testing.T) {
		router, svc := setupVMTest()
		svc.On("GetProduct", "2048:2").Return(product, true)
		svc.On("Launch", mock.Anything, compute.LaunchRequest{
			TemplateID: "tmpl-1",
			Product:    product,
			VDCID:      "vdc-1",
			Name:       "web",
			Allocations: []compute.Allocation{
				{Mode: vcloud.AllocationManual, IPAddress: "10.0.0.5"},
			},
		}).Return([]compute.VirtualMachine{{ID: "vm-1"}}, nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, jsonRequest(t, http.MethodPost, "/api/v1/vms", gin.H{
			"templateId":  "tmpl-1",
			"productId":   "2048:2",
			"vdcId":       "vdc-1",
			"name":        "web",
			"allocations": []gin.H{{"mode": "MANUAL", "ipAddress": "10.0.0.5"}},
		}))

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, float64(1), decodeBody(t, w)["resultTotal"])
		svc.AssertExpectations(t)
	})

	t.Run("unknown product", func(t *testing.T) {
		router, svc := setupVMTest()
		svc.On("GetProduct", "1:1").Return(products.Product{}, false)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, jsonRequest(t, http.MethodPost, "/api/v1/vms", gin.H{
			"templateId": "tmpl-1", "productId": "1:1", "vdcId": "vdc-1", "name": "web",
		}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "Launch", mock.Anything, mock.Anything)
	})

	t.Run("missing fields", func(t *testing.T) {
		router, svc := setupVMTest()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, jsonRequest(t, http.MethodPost, "/api/v1/vms", gin.H{"name": "web"}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid request body", decodeBody(t, w)["message"])
		svc.AssertNotCalled(t, "GetProduct", mock.Anything)
	})

	t.Run("rejected by the service", func(t *testing.T) {
		router, svc := setupVMTest()
		svc.On("GetProduct", "2048:2").Return(product, true)
		svc.On("Launch", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("%w: 1 allocations given for 2 VMs", compute.ErrInvalidRequest))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, jsonRequest(t, http.MethodPost, "/api/v1/vms", gin.H{
			"templateId": "tmpl-1", "productId": "2048:2", "vdcId": "vdc-1", "name": "web",
		}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeBody(t, w)["details"], "allocations")
	})
}

func TestCloneVM(t *testing.T) {
	router, svc := setupVMTest()
	svc.On("Clone", mock.Anything, compute.CloneRequest{
		SourceID: "vm-1",
		VDCID:    "vdc-1",
		Name:     "copy",
		PowerOn:  true,
	}).Return([]compute.VirtualMachine{{ID: "vm-9"}, {ID: "vm-10"}}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest(t, http.MethodPost, "/api/v1/vms/vm-1/clone", gin.H{
		"vdcId": "vdc-1", "name": "copy", "powerOn": true,
	}))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, decodeBody(t, w)["values"], 2)
	svc.AssertExpectations(t)
}

func TestTerminateVM(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"success", nil, http.StatusNoContent},
		{"not found", vcloud.ErrNotFound, http.StatusNotFound},
		{"delete retries exhausted", fmt.Errorf("delete vApp: %w", retry.ErrExhausted), http.StatusConflict},
		{"missing rights", vcloud.ErrUnauthorized, http.StatusForbidden},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, svc := setupVMTest()
			svc.On("Terminate", mock.Anything, "vm-1").Return(tt.err)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/vms/vm-1", nil))

			assert.Equal(t, tt.status, w.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestVAppRoutes(t *testing.T) {
	router, svc := setupVMTest()
	svc.On("GetVirtualMachines", mock.Anything, "vapp-1").
		Return([]compute.VirtualMachine{{ID: "vm-1"}, {ID: "vm-2"}}, nil)
	svc.On("TerminateVApp", mock.Anything, "vapp-1").Return(nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/vapps/vapp-1/vms", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decodeBody(t, w)["resultTotal"])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/vapps/vapp-1", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	svc.AssertExpectations(t)
}
