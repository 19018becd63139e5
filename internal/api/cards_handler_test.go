package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/membo-ai/study-engine/internal/domain"
	"github.com/membo-ai/study-engine/internal/service/scheduler"
)

// mockSchedulerService is a mock implementation of the SchedulerService interface
type mockSchedulerService struct {
	selectDueFn func(ctx context.Context, userID uuid.UUID, mode domain.StudyMode, limit int) ([]*domain.Card, error)
	nextCardFn  func(ctx context.Context, userID uuid.UUID, mode domain.StudyMode) (*domain.Card, error)
	batchSizeFn func(ctx context.Context, userID uuid.UUID, mode domain.StudyMode) (int, error)
}

func (m *mockSchedulerService) SelectDue(
	ctx context.Context,
	userID uuid.UUID,
	mode domain.StudyMode,
	limit int,
) ([]*domain.Card, error) {
	return m.selectDueFn(ctx, userID, mode, limit)
}

func (m *mockSchedulerService) NextCard(
	ctx context.Context,
	userID uuid.UUID,
	mode domain.StudyMode,
) (*domain.Card, error) {
	return m.nextCardFn(ctx, userID, mode)
}

func (m *mockSchedulerService) OptimalBatchSize(
	ctx context.Context,
	userID uuid.UUID,
	mode domain.StudyMode,
) (int, error) {
	return m.batchSizeFn(ctx, userID, mode)
}

func newCardsRouter(svc scheduler.SchedulerService) http.Handler {
	handler := NewCardsHandler(svc, discardLogger())
	r := chi.NewRouter()
	r.Get("/users/{userID}/cards/due", handler.GetDueCards)
	r.Get("/users/{userID}/batch-size", handler.GetBatchSize)
	return r
}

func dueCard(userID uuid.UUID) *domain.Card {
	return &domain.Card{
		ID:         uuid.New(),
		UserID:     userID,
		DeckID:     uuid.New(),
		Content:    json.RawMessage(`{"front":"q","back":"a"}`),
		Stability:  0.5,
		Difficulty: 0.3,
		NextReview: time.Now().UTC().Add(-time.Hour),
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
}

func TestGetDueCards(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name           string
		target         string
		serviceResult  []*domain.Card
		serviceError   error
		expectedStatus int
		expectedLimit  int
		expectedMode   domain.StudyMode
	}{
		{
			name:           "Success",
			target:         "/users/" + userID.String() + "/cards/due",
			serviceResult:  []*domain.Card{dueCard(userID), dueCard(userID)},
			expectedStatus: http.StatusOK,
			expectedMode:   domain.StudyModeStandard,
		},
		{
			name:           "Voice Mode With Limit",
			target:         "/users/" + userID.String() + "/cards/due?mode=voice&limit=5",
			serviceResult:  []*domain.Card{dueCard(userID)},
			expectedStatus: http.StatusOK,
			expectedLimit:  5,
			expectedMode:   domain.StudyModeVoice,
		},
		{
			name:           "Invalid User ID",
			target:         "/users/not-a-uuid/cards/due",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Invalid Mode",
			target:         "/users/" + userID.String() + "/cards/due?mode=osmosis",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Negative Limit",
			target:         "/users/" + userID.String() + "/cards/due?limit=-1",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Service Error",
			target:         "/users/" + userID.String() + "/cards/due",
			serviceError:   errors.New("database error"),
			expectedStatus: http.StatusInternalServerError,
			expectedMode:   domain.StudyModeStandard,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mockService := &mockSchedulerService{
				selectDueFn: func(ctx context.Context, gotUser uuid.UUID, mode domain.StudyMode, limit int) ([]*domain.Card, error) {
					if gotUser != userID {
						t.Errorf("expected user %s, got %s", userID, gotUser)
					}
					if mode != tc.expectedMode {
						t.Errorf("expected mode %s, got %s", tc.expectedMode, mode)
					}
					if limit != tc.expectedLimit {
						t.Errorf("expected limit %d, got %d", tc.expectedLimit, limit)
					}
					return tc.serviceResult, tc.serviceError
				},
			}

			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			rr := httptest.NewRecorder()
			newCardsRouter(mockService).ServeHTTP(rr, req)

			if rr.Code != tc.expectedStatus {
				t.Errorf("expected status %d, got %d: %s", tc.expectedStatus, rr.Code, rr.Body.String())
			}

			if tc.expectedStatus == http.StatusOK {
				var cards []*domain.Card
				if err := json.Unmarshal(rr.Body.Bytes(), &cards); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if len(cards) != len(tc.serviceResult) {
					t.Errorf("expected %d cards, got %d", len(tc.serviceResult), len(cards))
				}
			}
		})
	}
}

func TestGetBatchSize(t *testing.T) {
	userID := uuid.New()

	mockService := &mockSchedulerService{
		batchSizeFn: func(ctx context.Context, gotUser uuid.UUID, mode domain.StudyMode) (int, error) {
			if mode != domain.StudyModeVoice {
				t.Errorf("expected voice mode, got %s", mode)
			}
			return 14, nil
		},
	}

	req := httptest.NewRequest(
		http.MethodGet, "/users/"+userID.String()+"/batch-size?mode=voice", nil)
	rr := httptest.NewRecorder()
	newCardsRouter(mockService).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp BatchSizeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.BatchSize != 14 {
		t.Errorf("expected batch size 14, got %d", resp.BatchSize)
	}
}

func TestGetBatchSizeServiceError(t *testing.T) {
	userID := uuid.New()

	mockService := &mockSchedulerService{
		batchSizeFn: func(ctx context.Context, _ uuid.UUID, _ domain.StudyMode) (int, error) {
			return 0, errors.New("database error")
		},
	}

	req := httptest.NewRequest(
		http.MethodGet, "/users/"+userID.String()+"/batch-size", nil)
	rr := httptest.NewRecorder()
	newCardsRouter(mockService).ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}
