package observability

const (
	AttrHTTPMethod     = "http.method"
	AttrHTTPRoute      = "http.route"
	AttrHTTPStatusCode = "http.status_code"
	AttrLLMModel       = "llm.model"
	AttrLLMTokensIn    = "llm.tokens.input"
	AttrLLMTokensOut   = "llm.tokens.output"
	AttrErrorType      = "error.type"

	SpanHTTPRequest = "http.request"
	SpanChatReply   = "chat.reply"
	SpanLLMRequest  = "llm.generate"

	DefaultServiceName  = "notely"
	DefaultNamespace    = "notely"
	DefaultMetricsPath  = "/metrics"
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultSamplingRate = 1.0

	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"
)
