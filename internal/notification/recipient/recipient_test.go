package recipient

import (
	"testing"

	"notification-workers/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestForJob(t *testing.T) {
	tests := []struct {
		name           string
		job            models.Job
		expectedDirect []string
	}{
		{
			name:           "host and hauler",
			job:            models.Job{ID: "J1", HostUID: "H1", HaulerUID: "U2"},
			expectedDirect: []string{"H1", "U2"},
		},
		{
			name:           "hauler equals host",
			job:            models.Job{ID: "J1", HostUID: "H1", HaulerUID: "H1"},
			expectedDirect: []string{"H1"},
		},
		{
			name:           "host only",
			job:            models.Job{ID: "J1", HostUID: "H1"},
			expectedDirect: []string{"H1"},
		},
		{
			name:           "hauler only",
			job:            models.Job{ID: "J1", HaulerUID: "U2"},
			expectedDirect: []string{"U2"},
		},
		{
			name:           "nobody",
			job:            models.Job{ID: "J1"},
			expectedDirect: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			targets := ForJob(tt.job)
			assert.Equal(t, tt.expectedDirect, targets.Direct)
			assert.Equal(t, []string{"job_J1"}, targets.Topics)
		})
	}
}

func TestForListing(t *testing.T) {
	targets := ForListing(models.Listing{ID: "L1", Region: "north"})
	assert.Empty(t, targets.Direct)
	assert.Equal(t, []string{"all_listings", "listings_north"}, targets.Topics)

	targets = ForListing(models.Listing{ID: "L2"})
	assert.Equal(t, []string{"all_listings"}, targets.Topics)
}

func TestForUserApproval(t *testing.T) {
	targets := ForUserApproval("U7")
	assert.Equal(t, []string{"U7"}, targets.Direct)
	assert.Empty(t, targets.Topics)
}
