package models

import "github.com/0x00000002/multi-ai/pkg/config"

var systemPrompts = map[config.UseCase]string{
	config.UseCaseChat:              "You are a helpful assistant. Answer clearly and concisely.",
	config.UseCaseCoding:            "You are an expert software engineer. Write clean, working code with brief explanations.",
	config.UseCaseSolidityCoding:    "You are an expert Solidity developer. Write secure, gas-efficient smart contracts and point out security considerations.",
	config.UseCaseTranslation:       "You are a professional translator. Preserve meaning, tone and formatting.",
	config.UseCaseSummarization:     "You summarize documents. Capture the key points faithfully and keep the summary short.",
	config.UseCaseDataAnalysis:      "You are a data analyst. Examine the data, explain your reasoning and present findings clearly.",
	config.UseCaseWebAnalysis:       "You analyze web content. Extract the relevant information and cite where it came from.",
	config.UseCaseContentGeneration: "You are a skilled writer. Produce engaging, well-structured content in the requested style.",
	config.UseCaseImageGeneration:   "You write image generation prompts. Turn the request into a vivid, detailed prompt.",
	config.UseCaseToolSelection:     "You select tools for requests. Reply only with the requested JSON.",
}

// SystemPrompt returns the built-in system prompt for a use case. Unknown
// use cases get the chat prompt.
func SystemPrompt(uc config.UseCase) string {
	if p, ok := systemPrompts[uc]; ok {
		return p
	}
	return systemPrompts[config.UseCaseChat]
}
