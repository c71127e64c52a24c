package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mhrivnak/vcompute/pkg/network"
	"github.com/mhrivnak/vcompute/pkg/vcloud"
)

func setupNetworkTest() (*gin.Engine, *MockNetworkService) {
	gin.SetMode(gin.TestMode)

	svc := new(MockNetworkService)
	handler := NewNetworkHandlers(svc, slog.Default())

	router := gin.New()
	router.GET("/api/v1/networks", handler.ListNetworks)
	router.POST("/api/v1/networks", handler.CreateNetwork)
	router.GET("/api/v1/networks/:id", handler.GetNetwork)
	router.DELETE("/api/v1/networks/:id", handler.DeleteNetwork)
	router.GET("/api/v1/vms/:id/interfaces", handler.ListInterfaces)

	return router, svc
}

func TestListNetworks(t *testing.T) {
	router, svc := setupNetworkTest()
	svc.On("ListVLANs", mock.Anything).Return([]network.VLAN{
		{ID: "net-1", Name: "private", CIDR: "10.10.1.0/24", DNSServers: []string{"10.10.1.2"}},
		{ID: "net-2", Name: "dmz", DNSServers: []string{}},
	}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/networks", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	values := decodeBody(t, w)["values"].([]interface{})
	require.Len(t, values, 2)
	first := values[0].(map[string]interface{})
	assert.Equal(t, "private", first["name"])
	assert.Equal(t, "10.10.1.0/24", first["cidr"])
}

func TestGetNetwork(t *testing.T) {
	router, svc := setupNetworkTest()
	svc.On("GetVLAN", mock.Anything, "net-1").Return(&network.VLAN{ID: "net-1", Name: "private"}, nil)
	svc.On("GetVLAN", mock.Anything, "net-9").Return(nil, fmt.Errorf("network net-9: %w", vcloud.ErrNotFound))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/networks/net-1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "private", decodeBody(t, w)["name"])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/networks/net-9", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNetworkMutationsNotImplemented(t *testing.T) {
	router, svc := setupNetworkTest()
	notSupported := fmt.Errorf("network provisioning: %w", vcloud.ErrOperationNotSupported)
	svc.On("CreateVLAN", mock.Anything, mock.Anything).Return(nil, notSupported)
	svc.On("RemoveVLAN", mock.Anything, "net-1").Return(notSupported)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest(t, http.MethodPost, "/api/v1/networks", gin.H{"name": "new"}))
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/networks/net-1", nil))
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	svc.AssertExpectations(t)
}

func TestListInterfaces(t *testing.T) {
	router, svc := setupNetworkTest()
	svc.On("ListNetworkInterfaces", mock.Anything, "vm-1").Return([]network.NetworkInterface{
		{ID: "00:50:56:01:02:03", VMID: "vm-1", Index: 0, IPAddress: "10.0.0.11", DefaultRoute: true},
	}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/vms/vm-1/interfaces", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	values := decodeBody(t, w)["values"].([]interface{})
	require.Len(t, values, 1)
	assert.Equal(t, true, values[0].(map[string]interface{})["defaultRoute"])
}
