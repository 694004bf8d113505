package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stockledger/inventory-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func performHandle(t *testing.T, method string, data interface{}, err error) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(method, "/", nil)

	Handle(c, data, err)

	var body Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return recorder, body
}

func TestHandleSuccess(t *testing.T) {
	recorder, body := performHandle(t, http.MethodGet, gin.H{"ok": true}, nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.True(t, body.Success)
	assert.Nil(t, body.Error)
}

func TestHandleSuccessCreated(t *testing.T) {
	recorder, _ := performHandle(t, http.MethodPost, gin.H{"ok": true}, nil)
	assert.Equal(t, http.StatusCreated, recorder.Code)
}

func TestHandleDomainErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", types.Validationf("bad kind"), http.StatusBadRequest, types.KindValidation},
		{"insufficient stock", types.ErrInsufficientStock, http.StatusUnprocessableEntity, types.KindInsufficientStock},
		{"product missing", types.ErrProductNotFound, http.StatusNotFound, types.KindProductNotFound},
		{"entry missing", types.ErrEntryNotFound, http.StatusNotFound, types.KindEntryNotFound},
		{"already retired", types.ErrAlreadyRetired, http.StatusConflict, types.KindAlreadyRetired},
		{"stock conflict", types.ErrStockConflict, http.StatusConflict, types.KindStockConflict},
		{"remote down", types.ErrRemoteUnavailable, http.StatusBadGateway, types.KindRemoteUnavailable},
		{"unreconciled", types.ErrStockUnreconciled, http.StatusBadGateway, types.KindStockUnreconciled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder, body := performHandle(t, http.MethodPost, nil, tt.err)

			assert.Equal(t, tt.wantStatus, recorder.Code)
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.wantCode, body.Error.Code)
		})
	}
}

func TestHandleGormNotFound(t *testing.T) {
	recorder, body := performHandle(t, http.MethodGet, nil, gorm.ErrRecordNotFound)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, ErrCodeNotFound, body.Error.Code)
}

func TestHandleUnknownError(t *testing.T) {
	recorder, body := performHandle(t, http.MethodGet, nil, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Equal(t, ErrCodeInternalError, body.Error.Code)
}
