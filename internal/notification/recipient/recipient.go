// Package recipient maps change events to direct recipients and broadcast topics.
package recipient

import "notification-workers/internal/models"

// Topic names. Observers of a single job, every listing, and listings of one region.
const (
	TopicAllListings  = "all_listings"
	jobTopicPrefix    = "job_"
	regionTopicPrefix = "listings_"
)

// JobTopic is the broadcast scope for observers of one job.
func JobTopic(jobID string) string {
	return jobTopicPrefix + jobID
}

// RegionTopic is the broadcast scope for listings tagged with region.
func RegionTopic(region string) string {
	return regionTopicPrefix + region
}

// ForJob returns the host, the hauler when distinct from the host, and the job topic.
func ForJob(job models.Job) models.Targets {
	var direct []string
	if job.HostUID != "" {
		direct = append(direct, job.HostUID)
	}
	if job.HaulerUID != "" && job.HaulerUID != job.HostUID {
		direct = append(direct, job.HaulerUID)
	}
	return models.Targets{
		Direct: direct,
		Topics: []string{JobTopic(job.ID)},
	}
}

// ForListing returns broadcast topics only: all listings plus the listing's region, if tagged.
func ForListing(listing models.Listing) models.Targets {
	topics := []string{TopicAllListings}
	if listing.Region != "" {
		topics = append(topics, RegionTopic(listing.Region))
	}
	return models.Targets{Topics: topics}
}

// ForUserApproval targets the approved user alone.
func ForUserApproval(uid string) models.Targets {
	return models.Targets{Direct: []string{uid}}
}
