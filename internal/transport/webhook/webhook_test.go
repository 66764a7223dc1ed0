package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/marcus/fueltrack/internal/transport"
)

func sampleRecords() []transport.Record {
	return []transport.Record{
		{ID: "ev-1", Date: "2024-03-05", SiteID: "s-1", SiteName: "Quarry", EquipmentID: "e-1",
			EquipmentName: "Truck 12", EquipmentCategory: "Truck", CurrentReading: 1000, Liters: 20,
			FuelType: "Diesel S10", PricePerLiter: 6, TotalCost: 120, SyncedAt: "2024-03-05T12:00:00Z"},
		{ID: "ev-2", Date: "2024-03-06", SiteID: "s-1", SiteName: "Quarry", EquipmentID: "e-1",
			EquipmentName: "Truck 12", EquipmentCategory: "Truck", CurrentReading: 1200, Liters: 25},
	}
}

func TestPush_PostsExportAction(t *testing.T) {
	var mu sync.Mutex
	var got exportRequest
	var method, contentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		method = r.Method
		contentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	res, err := c.Push(context.Background(), sampleRecords())
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if res.CollectionID != "" {
		t.Errorf("webhook push should not report a collection id, got %q", res.CollectionID)
	}

	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPost {
		t.Errorf("method = %s, want POST", method)
	}
	if contentType != "application/json" {
		t.Errorf("Content-Type = %q", contentType)
	}
	if got.Action != "export" {
		t.Errorf("action = %q, want export", got.Action)
	}
	if len(got.Records) != 2 || len(got.Records[0]) != transport.ColumnCount {
		t.Fatalf("unexpected records shape: %d rows", len(got.Records))
	}
	if got.Records[0][0] != "ev-1" || got.Records[1][0] != "ev-2" {
		t.Errorf("rows out of order: %v, %v", got.Records[0][0], got.Records[1][0])
	}
}

func TestPush_IgnoresResponseStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := New(srv.URL, time.Second).Push(context.Background(), sampleRecords()); err != nil {
		t.Errorf("completed request should count as delivered, got %v", err)
	}
}

func TestPush_TransportErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	if _, err := New(url, time.Second).Push(context.Background(), sampleRecords()); err == nil {
		t.Error("expected error when the endpoint is unreachable")
	}
}

func TestPull_SkipsHeaderAndMapsRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		data := [][]any{transport.Header}
		for _, rec := range sampleRecords() {
			data = append(data, rec.Row())
		}
		data = append(data, []any{"", "broken"})
		json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
	}))
	defer srv.Close()

	records, err := New(srv.URL, time.Second).Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "ev-1" || records[0].Liters != 20 || records[1].CurrentReading != 1200 {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestPull_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"html login page", "<html>Sign in</html>", transport.ErrMalformedResponse},
		{"script failure", `{"success":false,"error":"sheet missing"}`, transport.ErrRemoteFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := New(srv.URL, time.Second).Pull(context.Background())
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestPull_EmptySheet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":true,"data":[]}`)
	}))
	defer srv.Close()

	records, err := New(srv.URL, time.Second).Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}
