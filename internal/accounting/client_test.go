package accounting

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estimatesync/internal"
	"estimatesync/internal/catalog"
	"estimatesync/internal/config"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func testConfig(baseURL string) config.Config {
	return config.Config{
		ZohoAPIBaseURL:     baseURL,
		ZohoOrganizationID: "org-42",
		ZohoRateLimitRPS:   1000,
		ZohoMaxRetries:     3,
	}
}

func newTestClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	c := NewClient(context.Background(), testConfig("https://books.example.test/api/v3"),
		WithHTTPClient(&http.Client{Transport: rt}))
	c.maxBackoff = time.Millisecond
	return c
}

func TestListItemsPaginatesAndRetries(t *testing.T) {
	var calls int
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		calls++
		require.Equal(t, "/api/v3/items", r.URL.Path)
		require.Equal(t, "org-42", r.URL.Query().Get("organization_id"))

		switch calls {
		case 1:
			return jsonResponse(http.StatusServiceUnavailable, `{"code":503,"message":"busy"}`), nil
		case 2:
			require.Equal(t, "1", r.URL.Query().Get("page"))
			return jsonResponse(http.StatusOK, `{"code":0,"message":"success",
				"items":[{"item_id":"i-1","name":"Kitchen Demo","rate":2574.00,"status":"active"}],
				"page_context":{"page":1,"has_more_page":true}}`), nil
		default:
			require.Equal(t, "2", r.URL.Query().Get("page"))
			return jsonResponse(http.StatusOK, `{"code":0,"message":"success",
				"items":[{"item_id":"i-2","name":"Old Item","rate":10,"status":"inactive"},
				         {"item_id":"i-3","name":"Electrical Work","status":"active"}],
				"page_context":{"page":2,"has_more_page":false}}`), nil
		}
	})

	records, err := ItemSource{Client: c}.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	require.Len(t, records, 2)
	assert.Equal(t, "Kitchen Demo", records[0].Name)
	require.NotNil(t, records[0].Rate)
	assert.True(t, records[0].Rate.Equal(decimal.RequireFromString("2574")))
	assert.Nil(t, records[1].Rate)
}

func TestClientErrorIsExternalServiceError(t *testing.T) {
	var calls int
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(http.StatusBadRequest, `{"code":1001,"message":"Customer does not exist"}`), nil
	})

	_, err := c.GetEstimate(context.Background(), "e-1")
	require.Error(t, err)
	assert.Equal(t, 1, calls, "4xx is not retried")

	var svcErr *internal.ExternalServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, http.StatusBadRequest, svcErr.Status)
	assert.Equal(t, "get_estimate", svcErr.Op)
	assert.Contains(t, err.Error(), "Customer does not exist")
}

func TestClientGivesUpAfterMaxRetries(t *testing.T) {
	var calls int
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		calls++
		resp := jsonResponse(http.StatusTooManyRequests, `{"code":44,"message":"too many"}`)
		resp.Header.Set("Retry-After", "0")
		return resp, nil
	})

	_, err := c.ListContacts(context.Background())
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	var svcErr *internal.ExternalServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, http.StatusTooManyRequests, svcErr.Status)
}

func TestClientNonZeroCodeFails(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"code":57,"message":"not authorized"}`), nil
	})
	_, err := c.GetEstimate(context.Background(), "e-1")
	require.ErrorContains(t, err, "code 57")
}

func TestCreateEstimatePayload(t *testing.T) {
	var got estimatePayload
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v3/estimates", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		return jsonResponse(http.StatusCreated, `{"code":0,"message":"The estimate has been created.",
			"estimate":{"estimate_id":"e-900","estimate_number":"EST-000123"}}`), nil
	})

	rec := internal.EnrichedRecord{
		CustomerID: "c-1",
		Record: internal.EstimateRecord{
			CustomerName:    "Jordan Blake",
			Date:            "2025-04-02",
			ReferenceNumber: "ES-10342",
			Notes:           "Estimate for Jordan Blake. Automatically created from PDF.",
			Terms:           "Estimate valid for 30 days.",
			LineItems: []internal.LineItem{
				{Name: "1. Kitchen Demo", Description: "Remove cabinets", Rate: decimal.RequireFromString("2574"), Quantity: 1, ResolvedCatalogID: "i-1"},
				{Name: "Paint", Description: "Item from PDF: Paint", Rate: decimal.RequireFromString("80.5"), Quantity: 3},
			},
		},
	}

	ref, err := c.CreateEstimate(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, internal.EstimateRef{ID: "e-900", Number: "EST-000123"}, ref)

	assert.Equal(t, "c-1", got.CustomerID)
	assert.Equal(t, "2025-04-02", got.Date)
	assert.Equal(t, "ES-10342", got.ReferenceNumber)
	require.Len(t, got.LineItems, 2)
	assert.Equal(t, "i-1", got.LineItems[0].ItemID)
	assert.Equal(t, json.Number("2574.00"), got.LineItems[0].Rate)
	assert.Empty(t, got.LineItems[1].ItemID)
	assert.Equal(t, json.Number("80.50"), got.LineItems[1].Rate)
	assert.Equal(t, 3, got.LineItems[1].Quantity)
}

func TestAttachFileSendsMultipart(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		require.Equal(t, "/api/v3/estimates/e-900/attachment", r.URL.Path)
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		require.Equal(t, "multipart/form-data", mediaType)

		part, err := multipart.NewReader(r.Body, params["boundary"]).NextPart()
		require.NoError(t, err)
		assert.Equal(t, "attachment", part.FormName())
		assert.Equal(t, "blake.pdf", part.FileName())
		content, _ := io.ReadAll(part)
		assert.Equal(t, "%PDF-1.4 body", string(content))
		return jsonResponse(http.StatusCreated, `{"code":0,"message":"Your file has been attached."}`), nil
	})

	require.NoError(t, c.AttachFile(context.Background(), "e-900", []byte("%PDF-1.4 body"), "blake.pdf"))
}

func TestContactSourceCreate(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		var body Contact
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "customer", body.ContactType)
		return jsonResponse(http.StatusCreated, `{"code":0,"contact":{"contact_id":"c-77","contact_name":"`+body.Name+`"}}`), nil
	})

	var _ catalog.Creator = ContactSource{}
	rec, err := ContactSource{Client: c}.Create(context.Background(), catalog.Record{Name: "Dana Lee"})
	require.NoError(t, err)
	assert.Equal(t, catalog.Record{ID: "c-77", Name: "Dana Lee"}, rec)
}

func TestTokenHTTPClientSendsZohoHeader(t *testing.T) {
	var tokenCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v2/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "rt-1", r.Form.Get("refresh_token"))
		assert.Equal(t, "client-1", r.Form.Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/books/v3/estimates/e-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Zoho-oauthtoken at-1", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"code":0,"estimate":{"estimate_id":"e-1","estimate_number":"EST-1"}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(srv.URL + "/books/v3")
	cfg.ZohoTokenURL = srv.URL + "/oauth/v2/token"
	cfg.ZohoClientID = "client-1"
	cfg.ZohoClientSecret = "secret-1"
	cfg.ZohoRefreshToken = "rt-1"
	cfg.ZohoTimeoutMs = 5000

	c := NewClient(context.Background(), cfg)
	for range 2 {
		est, err := c.GetEstimate(context.Background(), "e-1")
		require.NoError(t, err)
		assert.Equal(t, "EST-1", est.Number)
	}
	assert.Equal(t, int32(1), tokenCalls.Load(), "access token is reused until expiry")
}
