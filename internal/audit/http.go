package audit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/angu-team/ethernity-deeptrace/internal/attackdetector"
)

// QueryResult is the paginated response shape for both audit endpoints,
// mirroring internal/evidence/audit_query.go's AuditQueryResult.
type QueryResult struct {
	Total      int         `json:"total"`
	Limit      int         `json:"limit"`
	Offset     int         `json:"offset"`
	ExecutedAt time.Time   `json:"executed_at"`
	Records    interface{} `json:"records"`
}

// RegisterRoutes adds the audit query endpoints to router, mirroring
// internal/evidence/audit_query.go's RegisterAuditRoutes.
func RegisterRoutes(router *mux.Router, store *Store) {
	router.HandleFunc("/api/v1/audit/attacks", handleQueryAttacks(store)).Methods("GET")
	router.HandleFunc("/api/v1/audit/impacts", handleQueryImpacts(store)).Methods("GET")
}

// GET /api/v1/audit/attacks?group_key=...&type=sandwich&since=...&limit=50&offset=0
func handleQueryAttacks(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))
		if offset < 0 {
			offset = 0
		}

		query := AttackQuery{
			GroupKey: q.Get("group_key"),
			Type:     attackdetector.AttackType(q.Get("type")),
			Limit:    limit,
			Offset:   offset,
		}
		if since := q.Get("since"); since != "" {
			if t, err := time.Parse(time.RFC3339, since); err == nil {
				query.Since = t
			}
		}

		records, err := store.QueryAttackReports(r.Context(), query)
		if err != nil {
			http.Error(w, fmt.Sprintf(`{"error":"query failed: %s"}`, err.Error()), http.StatusInternalServerError)
			return
		}

		writeResult(w, records, len(records), query.Limit, query.Offset)
	}
}

// GET /api/v1/audit/impacts?group_id=...&since=...&limit=50&offset=0
func handleQueryImpacts(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))
		if offset < 0 {
			offset = 0
		}

		query := ImpactQuery{
			GroupID: q.Get("group_id"),
			Limit:   limit,
			Offset:  offset,
		}
		if since := q.Get("since"); since != "" {
			if t, err := time.Parse(time.RFC3339, since); err == nil {
				query.Since = t
			}
		}

		records, err := store.QueryGroupImpacts(r.Context(), query)
		if err != nil {
			http.Error(w, fmt.Sprintf(`{"error":"query failed: %s"}`, err.Error()), http.StatusInternalServerError)
			return
		}

		writeResult(w, records, len(records), query.Limit, query.Offset)
	}
}

func writeResult(w http.ResponseWriter, records interface{}, total, limit, offset int) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(QueryResult{
		Total:      total,
		Limit:      limit,
		Offset:     offset,
		ExecutedAt: time.Now(),
		Records:    records,
	})
}
