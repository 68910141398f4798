package global

import "github.com/seventv/image-resizer/internal/instance"

type Instances struct {
	S3         instance.S3
	Analyzer   instance.Analyzer
	Cache      instance.Cache
	Prometheus instance.Prometheus
}
