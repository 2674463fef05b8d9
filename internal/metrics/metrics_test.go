package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandler_ExposesRegisteredCollectors(t *testing.T) {
	MissionsSubmitted.Inc()
	SortieStatusTransitions.WithLabelValues("completed").Inc()
	ConflictsDetected.WithLabelValues("resource").Inc()
	CheckpointsCreated.WithLabelValues("manual").Inc()
	SpecialistsActive.Set(3)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "squawk_missions_submitted_total")
	assert.Contains(t, body, "squawk_sortie_status_transitions_total")
	assert.Contains(t, body, "squawk_conflicts_detected_total")
	assert.Contains(t, body, "squawk_checkpoints_created_total")
	assert.Contains(t, body, "squawk_specialists_active 3")
}
