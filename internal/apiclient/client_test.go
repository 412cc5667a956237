package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/failure"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", 2*time.Second, nil)
}

func TestLogin_ReturnsToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, err := uuid.Parse(r.Header.Get("X-Request-ID"))
		assert.NoError(t, err)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ann@example.com", body["email"])
		assert.Equal(t, "Secret123", body["password"])

		_, _ = io.WriteString(w, `{"access_token":"tok-1","refresh_token":"r","token_type":"bearer"}`)
	})

	token, err := c.Login(context.Background(), "ann@example.com", "Secret123")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
}

func TestLogin_ServerDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"detail":"Incorrect email or password"}`)
	})

	_, err := c.Login(context.Background(), "ann@example.com", "nope")
	require.Error(t, err)
	fe := failure.As(err)
	require.NotNil(t, fe)
	assert.Equal(t, http.StatusBadRequest, fe.Status)
	assert.Equal(t, "Incorrect email or password", fe.Detail)
	assert.Equal(t, failure.KindValidation, failure.Classify(err))
}

func TestLogin_MissingTokenIsMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"token_type":"bearer"}`)
	})

	_, err := c.Login(context.Background(), "ann@example.com", "Secret123")
	require.Error(t, err)
	assert.Equal(t, failure.KindNetwork, failure.Classify(err))
}

func TestRegister_SendsRole(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/register", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "user", body["role"])
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":1,"email":"ann@example.com","role":"user"}`)
	})

	require.NoError(t, c.Register(context.Background(), "ann@example.com", "Secret123", "user"))
}

func TestDetailFrom_ValidationList(t *testing.T) {
	body := []byte(`{"detail":[{"loc":["body","quantity"],"msg":"field required"},{"msg":"value is not a valid integer"}]}`)
	assert.Equal(t, "field required; value is not a valid integer", detailFrom(body))
	assert.Equal(t, "", detailFrom([]byte(`<html>bad gateway</html>`)))
	assert.Equal(t, "", detailFrom([]byte(`{"detail":42}`)))
}

func TestGetCart_ItemsEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cart/", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"id":3,"items":[
			{"id":11,"product_id":5,"quantity":2,"price":10.5,"product":{"id":5,"name":"Mug","price":12.25,"image_url":"/img/mug.png"}},
			{"id":12,"product_id":6,"quantity":1,"price":"3.10"}
		]}`)
	})

	lines, err := c.GetCart(context.Background(), "tok-1")
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, domain.ID("11"), lines[0].ID)
	assert.Equal(t, domain.ID("5"), lines[0].ProductID)
	assert.Equal(t, "Mug", lines[0].Name)
	assert.Equal(t, "/img/mug.png", lines[0].Image)
	assert.True(t, lines[0].UnitPrice.Decimal.Equal(decimal.RequireFromString("12.25")))
	assert.Equal(t, 2, lines[0].Quantity)

	assert.True(t, lines[1].UnitPrice.Decimal.Equal(decimal.RequireFromString("3.10")))
	assert.Equal(t, "", lines[1].Name)
}

func TestGetCart_BareArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":"a1","product_id":"p1","quantity":4,"product":{"name":"Tea"}}]`)
	})

	lines, err := c.GetCart(context.Background(), "tok-1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, domain.ID("a1"), lines[0].ID)
	assert.False(t, lines[0].UnitPrice.Valid)
	assert.Equal(t, 4, lines[0].Quantity)
}

func TestGetCart_Unauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"Token expired"}`)
	})

	_, err := c.GetCart(context.Background(), "stale")
	require.Error(t, err)
	assert.Equal(t, failure.KindUnauthorized, failure.Classify(err))
}

func TestCartMutations_Payloads(t *testing.T) {
	var got []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = append(got, r.Method+" "+r.URL.Path+" "+string(b))
		_, _ = io.WriteString(w, `{"message":"ok"}`)
	})

	require.NoError(t, c.AddCartItem(context.Background(), "tok", "42", 3))
	require.NoError(t, c.UpdateCartItem(context.Background(), "tok", "7", 0))

	assert.Equal(t, []string{
		`POST /cart/items {"product_id":42,"quantity":3}`,
		`PUT /cart/items/7 {"quantity":0}`,
	}, got)
}

func TestProducts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/products/":
			_, _ = io.WriteString(w, `[{"id":1,"name":"Mug","price":9.99,"quantity":3,"image":"/m.png"}]`)
		case "/products/search":
			assert.Equal(t, "blue mug", r.URL.Query().Get("q"))
			_, _ = io.WriteString(w, `[]`)
		case "/products/1":
			_, _ = io.WriteString(w, `{"id":1,"name":"Mug","price":9.99}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"detail":"Product not found"}`)
		}
	})
	ctx := context.Background()

	all, err := c.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 3, all[0].Stock)
	assert.Equal(t, "/m.png", all[0].Image)

	found, err := c.SearchProducts(ctx, "blue mug")
	require.NoError(t, err)
	assert.Empty(t, found)

	p, err := c.GetProduct(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Mug", p.Name)

	_, err = c.GetProduct(ctx, "99")
	require.Error(t, err)
	assert.Equal(t, "Product not found", failure.As(err).Detail)
}

func TestOrders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			_, _ = io.WriteString(w, `{"id":9,"status":"created","total_price":25.5,"items":[{"quantity":1,"price":25.5}]}`)
		default:
			_, _ = io.WriteString(w, `[{"id":9,"status":"paid","items":[{"quantity":2,"price":1.25},{"quantity":1,"price":3}]}]`)
		}
	})
	ctx := context.Background()

	o, err := c.CreateOrder(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, domain.ID("9"), o.ID)
	assert.True(t, o.TotalPrice.Equal(decimal.RequireFromString("25.5")))

	list, err := c.ListOrders(ctx, "tok")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "paid", list[0].Status)
	assert.Equal(t, 2, list[0].ItemCount)
	assert.True(t, list[0].TotalPrice.Equal(decimal.RequireFromString("5.5")))
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	c := New(srv.URL, time.Second, nil)

	_, err := c.ListProducts(context.Background())
	require.Error(t, err)
	assert.Equal(t, failure.KindNetwork, failure.Classify(err))
}

func TestRequestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })
	c := New(srv.URL, 50*time.Millisecond, nil)

	_, err := c.GetCart(context.Background(), "tok")
	require.Error(t, err)
	assert.Equal(t, failure.KindNetwork, failure.Classify(err))
}

func TestDeleteProduct(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "Bearer admin-tok", r.Header.Get("Authorization"))
		if r.URL.Path != "/admin/products/3" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"detail":"Product not found"}`)
			return
		}
		_, _ = io.WriteString(w, `{"status":"deleted"}`)
	})

	require.NoError(t, c.DeleteProduct(context.Background(), "admin-tok", "3"))

	err := c.DeleteProduct(context.Background(), "admin-tok", "9")
	fe := failure.As(err)
	require.NotNil(t, fe)
	assert.Equal(t, http.StatusNotFound, fe.Status)
	assert.Equal(t, "Product not found", fe.Detail)
}

func TestBaseURL_TrimsSlash(t *testing.T) {
	c := New("http://shop.example.com/api/", time.Second, nil)
	assert.Equal(t, "http://shop.example.com/api", c.BaseURL())
}
