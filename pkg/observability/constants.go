package observability

const (
	AttrAgentID         = "agent.id"
	AttrToolName        = "tool.name"
	AttrLLMModel        = "llm.model"
	AttrLLMProvider     = "llm.provider"
	AttrLLMTokensInput  = "llm.tokens.input"
	AttrLLMTokensOutput = "llm.tokens.output"
	AttrRequestID       = "request.id"
	AttrUseCase         = "request.use_case"

	SpanRequest       = "orchestrator.request"
	SpanAgentCall     = "orchestrator.agent_call"
	SpanLLMRequest    = "llm.request"
	SpanToolExecution = "tool.execution"
	SpanAggregation   = "orchestrator.aggregation"

	DefaultServiceName = "multi-ai"
)
