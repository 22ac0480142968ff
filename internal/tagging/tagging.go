package tagging

import "github.com/OldStager01/imagizer-autoscaler/pkg/models"

const (
	KeyRegion      = "region"
	KeyEnv         = "env"
	KeyName        = "Name"
	KeySpotEnabled = "spot-enabled"
)

// Apply sets the region and env tags on resource followed by every extra tag.
// An extra tag named env takes the place of the default one.
func Apply(resource models.Taggable, region, env string, extras []models.Tag) {
	resource.SetTag(KeyRegion, region)

	if !hasKey(extras, KeyEnv) {
		resource.SetTag(KeyEnv, env)
	}

	for _, tag := range extras {
		resource.SetTag(tag.Key, tag.Value)
	}
}

// DefaultTags are the extras applied to every cluster resource. The
// spot-enabled tag opts the group into spot instance replacement.
func DefaultTags(env string) []models.Tag {
	return []models.Tag{
		{Key: KeyName, Value: "imagizer"},
		{Key: KeyEnv, Value: env},
		{Key: KeySpotEnabled, Value: "true"},
	}
}

func hasKey(tags []models.Tag, key string) bool {
	for _, tag := range tags {
		if tag.Key == key {
			return true
		}
	}
	return false
}
