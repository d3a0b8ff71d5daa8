package qualification

import (
	"encoding/json"
	"regexp"
)

// RedactedPlaceholder is the value substituted for sensitive properties in
// sanitized event logs. A tag carrying it must be dropped, not reported.
const RedactedPlaceholder = "*********(redacted)"

// Raw property names cluster tags are derived from.
const (
	propAllTags     = "spark.databricks.clusterUsageTags.clusterAllTags"
	propClusterID   = "spark.databricks.clusterUsageTags.clusterId"
	propClusterName = "spark.databricks.clusterUsageTags.clusterName"
)

// Named tags projected into the tag set.
const (
	TagClusterID = "ClusterId"
	TagJobID     = "JobId"
	TagRunName   = "RunName"
)

// ClusterTagSet maps tag names to values. Tags absent from every source
// are omitted entirely, never present with an empty value.
type ClusterTagSet map[string]string

// jobNamePattern matches the job-cluster naming convention
// job-<jobId>-run-<runName>.
var jobNamePattern = regexp.MustCompile(`^job-(\d+)-run-(\d+).*`)

// ParseClusterTags derives the tag set from raw environment properties.
// When the aggregate all-tags property is present and not redacted it is
// authoritative: an ordered list of {key,value} pairs. When it is redacted
// or absent, individual named tags are still derived from the specific raw
// properties that may remain un-redacted.
func ParseClusterTags(props map[string]string) ClusterTagSet {
	tags := ClusterTagSet{}

	if raw, ok := props[propAllTags]; ok && raw != RedactedPlaceholder {
		var pairs []struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		}
		if err := json.Unmarshal([]byte(raw), &pairs); err == nil {
			for _, pair := range pairs {
				if pair.Value == RedactedPlaceholder {
					continue
				}
				tags[pair.Key] = pair.Value
			}
			return tags
		}
	}

	if id, ok := props[propClusterID]; ok && id != RedactedPlaceholder {
		tags[TagClusterID] = id
	}
	if name, ok := props[propClusterName]; ok && name != RedactedPlaceholder {
		if m := jobNamePattern.FindStringSubmatch(name); m != nil {
			tags[TagJobID] = m[1]
			tags[TagRunName] = m[2]
		}
	}
	return tags
}
