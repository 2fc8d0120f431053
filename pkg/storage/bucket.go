package storage

import "fmt"

// Bucket names a top-level object namespace.
type Bucket string

const (
	BucketHomeworkFiles     Bucket = "homework_files"
	BucketHomeworkSolutions Bucket = "homework_solutions"
	BucketLearningResources Bucket = "learning_resources"
)

// Buckets lists every bucket the service provisions on start.
var Buckets = []Bucket{BucketHomeworkFiles, BucketHomeworkSolutions, BucketLearningResources}

// ParseBucket validates a bucket name coming from a token or request.
func ParseBucket(raw string) (Bucket, error) {
	for _, b := range Buckets {
		if string(b) == raw {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown bucket %q", raw)
}
