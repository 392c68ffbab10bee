package acceptance

import (
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"
)

type sessionFixture struct {
	ts           *TestServer
	riderID      string
	checkpointID string
	attendantID  string
}

func newSessionFixture(t *testing.T, ts *TestServer) sessionFixture {
	t.Helper()
	checkpointID := ts.CreateTestCheckpoint(t, "North Gate")
	return sessionFixture{
		ts:           ts,
		riderID:      ts.CreateTestRider(t, "rider-1"),
		checkpointID: checkpointID,
		attendantID:  ts.CreateTestAttendant(t, "Attendant One", checkpointID),
	}
}

func (f sessionFixture) book(t *testing.T) map[string]interface{} {
	t.Helper()
	tokenValue := f.ts.IssueTestToken(t, f.attendantID, f.checkpointID)
	w := f.ts.POST("/session/book", map[string]string{
		"riderId":      f.riderID,
		"attendantId":  f.attendantID,
		"checkpointId": f.checkpointID,
		"token":        tokenValue,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("failed to book session: status %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

func (f sessionFixture) start(t *testing.T, sessionID string) *json.Decoder {
	t.Helper()
	w := f.ts.PATCH("/session/start", map[string]string{
		"sessionId":   sessionID,
		"attendantId": f.attendantID,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("failed to start session: status %d: %s", w.Code, w.Body.String())
	}
	return json.NewDecoder(w.Body)
}

func TestSessionLifecycle_BookStartEnd(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()
	f := newSessionFixture(t, ts)

	booked := f.book(t)
	if booked["status"] != "PENDING" {
		t.Errorf("expected status PENDING after book, got %v", booked["status"])
	}
	if _, hasStart := booked["startTime"]; hasStart {
		t.Errorf("expected no startTime before confirmStart, got %v", booked["startTime"])
	}
	sessionID := booked["id"].(string)

	var started map[string]interface{}
	f.start(t, sessionID).Decode(&started)
	if started["status"] != "ONGOING" {
		t.Errorf("expected status ONGOING after start, got %v", started["status"])
	}
	if started["startTime"] == nil {
		t.Error("expected startTime to be stamped on confirmStart")
	}

	// 125 elapsed seconds bill as ceil(125/60) = 3 minutes at 2.00/min.
	ts.BackdateSessionStart(t, sessionID, 125*time.Second)

	endToken := ts.IssueTestToken(t, f.attendantID, f.checkpointID)
	w := ts.PATCH("/session/end", map[string]string{
		"sessionId":    sessionID,
		"attendantId":  f.attendantID,
		"checkpointId": f.checkpointID,
		"token":        endToken,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("failed to end session: status %d: %s", w.Code, w.Body.String())
	}

	var ended struct {
		Session struct {
			Status       string  `json:"status"`
			BilledAmount *string `json:"billedAmount"`
			EndTime      *string `json:"endTime"`
		} `json:"session"`
		Payment struct {
			Status string `json:"status"`
			Amount string `json:"amount"`
		} `json:"payment"`
	}
	json.Unmarshal(w.Body.Bytes(), &ended)

	if ended.Session.Status != "COMPLETED" {
		t.Errorf("expected status COMPLETED, got %s", ended.Session.Status)
	}
	if ended.Session.BilledAmount == nil || *ended.Session.BilledAmount != "6.00" {
		t.Errorf("expected billedAmount 6.00, got %v", ended.Session.BilledAmount)
	}
	if ended.Session.EndTime == nil {
		t.Error("expected endTime to be set")
	}
	if ended.Payment.Status != "PENDING" {
		t.Errorf("expected payment status PENDING, got %s", ended.Payment.Status)
	}
	if ended.Payment.Amount != "6.00" {
		t.Errorf("expected payment amount 6.00, got %s", ended.Payment.Amount)
	}
}

func TestBookSession_RejectsSecondOpenSession(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()
	f := newSessionFixture(t, ts)

	f.book(t)

	tokenValue := ts.IssueTestToken(t, f.attendantID, f.checkpointID)
	w := ts.POST("/session/book", map[string]string{
		"riderId":      f.riderID,
		"attendantId":  f.attendantID,
		"checkpointId": f.checkpointID,
		"token":        tokenValue,
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d: %s", http.StatusBadRequest, w.Code, w.Body.String())
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["code"] != "ACTIVE_SESSION_EXISTS" {
		t.Errorf("expected code ACTIVE_SESSION_EXISTS, got %s", resp["code"])
	}
}

func TestBookSession_ConcurrentBookingsAtMostOneSucceeds(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()
	f := newSessionFixture(t, ts)

	tokenValue := ts.IssueTestToken(t, f.attendantID, f.checkpointID)
	body := map[string]string{
		"riderId":      f.riderID,
		"attendantId":  f.attendantID,
		"checkpointId": f.checkpointID,
		"token":        tokenValue,
	}

	const workers = 8
	codes := make(chan int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes <- ts.POST("/session/book", body).Code
		}()
	}
	wg.Wait()
	close(codes)

	created := 0
	for code := range codes {
		if code == http.StatusCreated {
			created++
		}
	}
	if created != 1 {
		t.Errorf("expected exactly 1 booking to succeed, got %d", created)
	}

	var open int
	err := ts.DB.Get(&open, `
		SELECT count(*) FROM rental_sessions
		WHERE rider_id = $1 AND status IN ('PENDING', 'ONGOING')
	`, f.riderID)
	if err != nil {
		t.Fatalf("failed to count open sessions: %v", err)
	}
	if open != 1 {
		t.Errorf("expected exactly 1 open session, got %d", open)
	}
}

func TestBookSession_ExpiredTokenRejected(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()
	f := newSessionFixture(t, ts)

	tokenValue := ts.IssueTestToken(t, f.attendantID, f.checkpointID)
	ts.ExpireTokenValue(t, tokenValue)

	w := ts.POST("/session/book", map[string]string{
		"riderId":      f.riderID,
		"attendantId":  f.attendantID,
		"checkpointId": f.checkpointID,
		"token":        tokenValue,
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d: %s", http.StatusBadRequest, w.Code, w.Body.String())
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["code"] != "NO_VALID_TOKEN" {
		t.Errorf("expected code NO_VALID_TOKEN, got %s", resp["code"])
	}
}

func TestConfirmStart_NotIdempotent(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()
	f := newSessionFixture(t, ts)

	sessionID := f.book(t)["id"].(string)
	f.start(t, sessionID)

	// A replayed confirmStart must not re-stamp start_time.
	w := ts.PATCH("/session/start", map[string]string{
		"sessionId":   sessionID,
		"attendantId": f.attendantID,
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d: %s", http.StatusConflict, w.Code, w.Body.String())
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["code"] != "INVALID_TRANSITION" {
		t.Errorf("expected code INVALID_TRANSITION, got %s", resp["code"])
	}
}

func TestConfirmStart_WrongAttendantRejected(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()
	f := newSessionFixture(t, ts)

	otherCheckpoint := ts.CreateTestCheckpoint(t, "South Gate")
	otherAttendant := ts.CreateTestAttendant(t, "Attendant Two", otherCheckpoint)

	sessionID := f.book(t)["id"].(string)

	w := ts.PATCH("/session/start", map[string]string{
		"sessionId":   sessionID,
		"attendantId": otherAttendant,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d: %s", http.StatusBadRequest, w.Code, w.Body.String())
	}
}

func TestConfirmEnd_RequiresOngoing(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()
	f := newSessionFixture(t, ts)

	sessionID := f.book(t)["id"].(string)
	endToken := ts.IssueTestToken(t, f.attendantID, f.checkpointID)

	// Still PENDING; ending must be rejected.
	w := ts.PATCH("/session/end", map[string]string{
		"sessionId":    sessionID,
		"attendantId":  f.attendantID,
		"checkpointId": f.checkpointID,
		"token":        endToken,
	})
	if w.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d: %s", http.StatusConflict, w.Code, w.Body.String())
	}
}

func TestCancelSession_OnlyPending(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()
	f := newSessionFixture(t, ts)

	sessionID := f.book(t)["id"].(string)

	w := ts.PATCH("/session/cancel", map[string]string{"sessionId": sessionID})
	if w.Code != http.StatusOK {
		t.Fatalf("failed to cancel session: status %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != "CANCELLED" {
		t.Errorf("expected status CANCELLED, got %v", resp["status"])
	}

	// A cancelled session no longer blocks booking.
	f.book(t)
}

func TestActiveSession_ReturnsOpenSession(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()
	f := newSessionFixture(t, ts)

	w := ts.GET("/session/active/" + f.riderID)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d with no open session, got %d", http.StatusNotFound, w.Code)
	}

	booked := f.book(t)

	w = ts.GET("/session/active/" + f.riderID)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["id"] != booked["id"] {
		t.Errorf("expected active session %v, got %v", booked["id"], resp["id"])
	}
}

func TestSessionHistory_CompletedMostRecentFirst(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()
	f := newSessionFixture(t, ts)

	for i := 0; i < 2; i++ {
		sessionID := f.book(t)["id"].(string)
		f.start(t, sessionID)
		endToken := ts.IssueTestToken(t, f.attendantID, f.checkpointID)
		w := ts.PATCH("/session/end", map[string]string{
			"sessionId":    sessionID,
			"attendantId":  f.attendantID,
			"checkpointId": f.checkpointID,
			"token":        endToken,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("failed to end session: status %d: %s", w.Code, w.Body.String())
		}
	}

	w := ts.GET("/session/history/" + f.riderID)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var sessions []struct {
		Status  string    `json:"status"`
		EndTime time.Time `json:"endTime"`
	}
	json.Unmarshal(w.Body.Bytes(), &sessions)

	if len(sessions) != 2 {
		t.Fatalf("expected 2 completed sessions, got %d", len(sessions))
	}
	for _, s := range sessions {
		if s.Status != "COMPLETED" {
			t.Errorf("expected only COMPLETED sessions in history, got %s", s.Status)
		}
	}
	if sessions[0].EndTime.Before(sessions[1].EndTime) {
		t.Error("expected history ordered most-recent-first")
	}
}
