package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(documentsParsedTotal, chunksCreatedTotal, ocrPagesTotal)
}

var documentsParsedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pipeline_documents_parsed_total",
		Help: "Parse outcomes, labeled by format and status.",
	},
	[]string{"format", "status"}, // status: 'ok', 'error'
)

var chunksCreatedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pipeline_chunks_created_total",
		Help: "Chunks produced by the parser, labeled by chunk type.",
	},
	[]string{"type"},
)

var ocrPagesTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "pipeline_ocr_pages_total",
		Help: "Pages that fell back to OCR because native text was empty.",
	},
)

func IncDocumentParsed(format, status string) {
	documentsParsedTotal.WithLabelValues(format, status).Inc()
}

func AddChunksCreated(chunkType string, n int) {
	chunksCreatedTotal.WithLabelValues(chunkType).Add(float64(n))
}

func IncOCRPage() {
	ocrPagesTotal.Inc()
}
