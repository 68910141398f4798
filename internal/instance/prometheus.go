package instance

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Prometheus interface {
	Register(r prometheus.Registerer)

	StartRun() func(success bool)

	DecodeSource() func()
	Rasterize() func()

	Requested()
	Coalesced()
	StaleResult()

	SessionOpened()
	SessionClosed()

	TotalBytesIn(int)
	TotalBytesOut(int)
	TotalBytesSaved(int64)
	TotalBytesExported(int)

	Analysis(fallback bool, cached bool)
}
