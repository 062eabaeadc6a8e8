package llm

var RenderSession = renderSession
