package booking

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/mentorika/Mentorika-server/cmd/models"
)

func newTestRouter(t *testing.T) (*mux.Router, *Service) {
	t.Helper()
	svc, _, _ := newTestService(t)
	h := NewBookingHandler(nil, svc, nil)
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	return router, svc
}

func signBody(body, key []byte) string {
	mac := hmac.New(sha512.New, key)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestConfirmRejectsUnsignedCallback(t *testing.T) {
	t.Setenv("PAYMENT_SECRET_KEY", "webhook-secret")
	router, svc := newTestRouter(t)

	b, err := svc.Create(context.Background(), individualRequest("2026-09-07", "09:00"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/bookings/%d/confirm", b.ID), bytes.NewBufferString("{}"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unsigned confirm must be rejected, got %d", rec.Code)
	}
	got, _ := svc.Get(context.Background(), b.ID)
	if got.Status != models.BookingPending {
		t.Fatalf("unsigned confirm must not touch the booking, got %s", got.Status)
	}
}

func TestConfirmRejectsForgedSignature(t *testing.T) {
	t.Setenv("PAYMENT_SECRET_KEY", "webhook-secret")
	router, svc := newTestRouter(t)

	b, err := svc.Create(context.Background(), individualRequest("2026-09-07", "09:00"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	body := []byte("{}")
	req := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/bookings/%d/confirm", b.ID), bytes.NewBuffer(body))
	req.Header.Set("X-Payment-Signature", signBody(body, []byte("not-the-secret")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("forged signature must be rejected, got %d", rec.Code)
	}
	got, _ := svc.Get(context.Background(), b.ID)
	if got.Status != models.BookingPending {
		t.Fatalf("forged confirm must not touch the booking, got %s", got.Status)
	}
}

func TestConfirmAcceptsSignedCallback(t *testing.T) {
	t.Setenv("PAYMENT_SECRET_KEY", "webhook-secret")
	router, _ := newTestRouter(t)

	body := []byte("{}")
	req := httptest.NewRequest(http.MethodPost, "/bookings/42/confirm", bytes.NewBuffer(body))
	req.Header.Set("X-Payment-Signature", signBody(body, []byte("webhook-secret")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// The signature passes, so the unknown booking is what gets reported.
	if rec.Code != http.StatusNotFound {
		t.Fatalf("signed confirm should reach the lifecycle, got %d", rec.Code)
	}
}

func TestCompleteRequiresAuth(t *testing.T) {
	router, svc := newTestRouter(t)

	b, err := svc.Create(context.Background(), individualRequest("2026-09-07", "09:00"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/bookings/%d/complete", b.ID), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous complete must be rejected, got %d", rec.Code)
	}
	got, _ := svc.Get(context.Background(), b.ID)
	if got.Status != models.BookingPending {
		t.Fatalf("anonymous complete must not touch the booking, got %s", got.Status)
	}
}
