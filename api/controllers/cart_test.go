package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smaite/weser/api/middleware"
	cartsvc "github.com/smaite/weser/internal/cart"
	pkgerrors "github.com/smaite/weser/pkg/errors"
)

type stubCartService struct {
	cart    *cartsvc.CartDTO
	err     error
	addedTo uuid.UUID
	lastAdd cartsvc.AddItemInput
}

func (s *stubCartService) AddItem(_ context.Context, userID uuid.UUID, input cartsvc.AddItemInput) (*cartsvc.CartDTO, error) {
	s.addedTo = userID
	s.lastAdd = input
	return s.cart, s.err
}

func (s *stubCartService) SetQuantity(_ context.Context, _ uuid.UUID, _ cartsvc.SetQuantityInput) (*cartsvc.CartDTO, error) {
	return s.cart, s.err
}

func (s *stubCartService) RemoveItem(_ context.Context, _, _ uuid.UUID) (*cartsvc.CartDTO, error) {
	return s.cart, s.err
}

func (s *stubCartService) GetCart(_ context.Context, _ uuid.UUID) (*cartsvc.CartDTO, error) {
	return s.cart, s.err
}

func (s *stubCartService) Clear(_ context.Context, _ uuid.UUID) error {
	return s.err
}

func authedRequest(method, target, body string, userID uuid.UUID) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
}

func TestAddCartItemReturnsUpdatedCart(t *testing.T) {
	userID := uuid.New()
	productID := uuid.New()
	svc := &stubCartService{cart: &cartsvc.CartDTO{
		Items: []cartsvc.CartLineDTO{{ProductID: productID, Quantity: 2, Price: decimal.NewFromInt(10)}},
		Total: decimal.NewFromInt(20),
	}}

	req := authedRequest(http.MethodPost, "/api/v1/cart/items", `{"product_id":"`+productID.String()+`","quantity":2}`, userID)
	rec := httptest.NewRecorder()
	AddCartItem(svc, nil)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, svc.addedTo)
	assert.Equal(t, productID, svc.lastAdd.ProductID)
	assert.Equal(t, 2, svc.lastAdd.Quantity)

	var envelope struct {
		Data cartsvc.CartDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data.Items, 1)
}

func TestAddCartItemRejectsInvalidPayload(t *testing.T) {
	svc := &stubCartService{}

	req := authedRequest(http.MethodPost, "/api/v1/cart/items", `{"quantity":0}`, uuid.New())
	rec := httptest.NewRecorder()
	AddCartItem(svc, nil)(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, uuid.Nil, svc.addedTo)
}

func TestAddCartItemRequiresAuthenticatedUser(t *testing.T) {
	svc := &stubCartService{}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"product_id":"`+uuid.NewString()+`","quantity":1}`))
	rec := httptest.NewRecorder()
	AddCartItem(svc, nil)(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAddCartItemSurfacesStockConflict(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock").
		WithDetails(cartsvc.InsufficientStockDetails{Available: 1, Requested: 5})}

	req := authedRequest(http.MethodPost, "/api/v1/cart/items", `{"product_id":"`+uuid.NewString()+`","quantity":5}`, uuid.New())
	rec := httptest.NewRecorder()
	AddCartItem(svc, nil)(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Details any    `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, string(pkgerrors.CodeStateConflict), envelope.Error.Code)
	assert.NotNil(t, envelope.Error.Details)
}

func TestRemoveCartItemParsesPathParam(t *testing.T) {
	userID := uuid.New()
	productID := uuid.New()
	svc := &stubCartService{cart: &cartsvc.CartDTO{Total: decimal.Zero}}

	router := chi.NewRouter()
	router.Delete("/api/v1/cart/items/{productId}", RemoveCartItem(svc, nil))

	req := authedRequest(http.MethodDelete, "/api/v1/cart/items/"+productID.String(), "", userID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRemoveCartItemRejectsMalformedID(t *testing.T) {
	svc := &stubCartService{}

	router := chi.NewRouter()
	router.Delete("/api/v1/cart/items/{productId}", RemoveCartItem(svc, nil))

	req := authedRequest(http.MethodDelete, "/api/v1/cart/items/not-a-uuid", "", uuid.New())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
