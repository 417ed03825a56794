package translator

// Format identifiers used throughout the proxy. Middle is the intermediate
// schema every ingress/egress pair is translated through; it is never spoken
// on the wire.
const (
	FormatOpenAI    Format = "openai"
	FormatAnthropic Format = "anthropic"
	FormatGemini    Format = "gemini"
	FormatMiddle    Format = "middle"
)
