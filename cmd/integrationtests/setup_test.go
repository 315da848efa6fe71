package integrationtests

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	auction "spirit-market/internal/auctionService"
	lifecycle "spirit-market/internal/lifecycleService"
	listing "spirit-market/internal/listingService"
	model "spirit-market/internal/models"
	"spirit-market/internal/notifier"
	"spirit-market/internal/repository"
	"spirit-market/internal/server"

	"github.com/gin-gonic/gin"
)

const testRetryLimit = 3

// SetupTestRouter initializes the router with an in-memory repository for
// integration testing. The returned queue captures notification events and
// the repo allows direct state inspection.
func SetupTestRouter() (*gin.Engine, *repository.MemoryRepo, *notifier.Queue) {
	gin.SetMode(gin.TestMode)

	repo := repository.NewMemoryRepo()
	queue := notifier.NewQueue(64)

	listingSvc := listing.NewListingService(repo, 7*24*time.Hour, testRetryLimit)
	auctionSvc := auction.NewAuctionService(repo, queue, testRetryLimit)
	lifecycleSvc := lifecycle.NewLifecycleService(repo, queue, lifecycle.NewMemoryTradeCounter(), testRetryLimit)

	router := server.SetupRouter(listingSvc, auctionSvc, lifecycleSvc)
	return router, repo, queue
}

// SetupTestRouterWithListings seeds the repo with listings before wiring the
// router. Seeded rows bypass service validation, so tests can craft states
// the API would not produce, like an already-expired auction.
func SetupTestRouterWithListings(listings ...model.Listing) (*gin.Engine, *repository.MemoryRepo, *notifier.Queue) {
	router, repo, queue := SetupTestRouter()
	for _, l := range listings {
		repo.PutListing(l)
	}
	return router, repo, queue
}

// ExecuteRequest executes an HTTP request and returns the response recorder.
func ExecuteRequest(t *testing.T, router *gin.Engine, method, url string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ExecuteRequestAndParse executes an HTTP request on the given router and parses the response
func ExecuteRequestAndParse(t *testing.T, router *gin.Engine, method, url string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()

	var reqBody []byte
	var err error

	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		if err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
	}

	return resp, w
}

// DrainEvents closes the queue and collects everything it delivered.
func DrainEvents(q *notifier.Queue) []notifier.Event {
	q.Close()
	var events []notifier.Event
	for ev := range q.Events() {
		events = append(events, ev)
	}
	return events
}
