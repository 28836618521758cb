package usecase

import (
	"fmt"
	"strings"

	"mentor-relay/internal/domain"
)

// OnboardingGreeting is sent on first contact instead of a generated reply.
const OnboardingGreeting = "Hello and welcome! I am your business mentor. " +
	"Please describe your business idea in a few sentences: what you want to sell or offer, " +
	"who your customers are, and where you plan to operate. I will review it and share my advice."

const (
	suffixOneMore = "\n\nYou can send me one more follow-up question about your idea."
	suffixOpen    = "\n\nFeel free to ask a follow-up question about your idea."
	suffixClosing = "\n\nThank you for sharing your idea with me. I wish you every success with your business!"
)

func systemPrompt(p domain.Persona) string {
	switch p {
	case domain.PersonaLocal:
		return strings.Join([]string{
			"You are a well-connected local entrepreneur mentor based in Kampala.",
			"You have started and run businesses in this area for many years and know the local market closely.",
			"You favour practical, step-by-step approaches that build on local resources, customer insight and careful planning.",
		}, " ")
	case domain.PersonaRefugee:
		return strings.Join([]string{
			"You are a refugee entrepreneur mentor who built a thriving business in Kampala despite serious obstacles.",
			"You understand limited resources, unfamiliar markets and social barriers, and you believe in the potential of the people you mentor.",
			"Your advice is empathetic and motivating, and it encourages bold, creative ways around constraints.",
		}, " ")
	default:
		return strings.Join([]string{
			"You are an AI business mentor giving tailored advice to entrepreneurs in Kampala.",
			"You evaluate business ideas critically and give specific, actionable guidance on feasibility and implementation.",
		}, " ")
	}
}

func firstAnalysisSections(p domain.Persona) []string {
	switch p {
	case domain.PersonaLocal:
		return []string{
			"1) Feasibility: is the idea realistic in Kampala today? Say plainly what works and what does not.",
			"2) Step-by-step execution plan: the first three concrete steps, in order, with rough costs in UGX.",
			"3) Local market insight: who buys this, where they are, and what they currently pay.",
			"4) Local resources and networks: suppliers, markets, associations or SACCOs worth contacting.",
			"5) Differentiation: how to stand out from the existing sellers nearby.",
		}
	case domain.PersonaRefugee:
		return []string{
			"1) Feasibility: an honest view of the idea, acknowledging the constraints a refugee founder may face.",
			"2) Starting small: how to begin with very little capital and grow step by step.",
			"3) Market opportunity: customers inside and outside refugee communities, and what they need.",
			"4) Community and support: organisations, savings groups, and peer networks that can help.",
			"5) Creative edge: bold ideas that turn the founder's background and experience into a strength.",
		}
	default:
		return []string{
			"1) Feasibility assessment: strengths, weaknesses and the key risks of the idea.",
			"2) Execution plan: a short, ordered plan for the first three months.",
			"3) Market analysis: target customers, demand, pricing and competition.",
			"4) Resources: skills, capital and partners needed, and where to find them.",
			"5) Differentiation: a clear value proposition that sets the business apart.",
		}
	}
}

func firstAnalysisPrompt(p domain.Persona, idea string) string {
	return strings.Join([]string{
		"An entrepreneur has shared the following business idea:",
		fmt.Sprintf("%q", strings.TrimSpace(idea)),
		"",
		"Review the idea in your own voice. Structure your answer with these sections:",
		strings.Join(firstAnalysisSections(p), "\n"),
		"",
		"Keep the whole answer under 350 words and write in plain language suitable for a WhatsApp message.",
	}, "\n")
}

func followUpPrompt(p domain.Persona, question string) string {
	var voice string
	switch p {
	case domain.PersonaLocal:
		voice = "Stay practical and grounded in the Kampala market."
	case domain.PersonaRefugee:
		voice = "Stay encouraging and mindful of the constraints the entrepreneur may face."
	default:
		voice = "Stay analytical and specific."
	}
	return strings.Join([]string{
		"Continue our conversation about the entrepreneur's business idea and answer their follow-up question:",
		fmt.Sprintf("%q", strings.TrimSpace(question)),
		voice + " Keep the answer under 200 words.",
	}, "\n")
}

// BuildMessages assembles the generation context for a phase. It returns nil
// for phases that do not call the generator.
func BuildMessages(p domain.Persona, phase Phase, inbound string, history []domain.Exchange) []domain.ChatMessage {
	switch phase {
	case PhaseFirst:
		return []domain.ChatMessage{
			{Role: domain.RoleSystem, Content: systemPrompt(p)},
			{Role: domain.RoleUser, Content: firstAnalysisPrompt(p, inbound)},
		}
	case PhaseFollowUp:
		messages := []domain.ChatMessage{{Role: domain.RoleSystem, Content: systemPrompt(p)}}
		for _, ex := range history {
			messages = append(messages, replay(ex)...)
		}
		return append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: followUpPrompt(p, inbound)})
	}
	return nil
}

func replay(ex domain.Exchange) []domain.ChatMessage {
	var out []domain.ChatMessage
	if s := strings.TrimSpace(ex.ReceivedText); s != "" {
		out = append(out, domain.ChatMessage{Role: domain.RoleUser, Content: s})
	}
	if s := strings.TrimSpace(ex.SentText); s != "" {
		out = append(out, domain.ChatMessage{Role: domain.RoleAssistant, Content: s})
	}
	return out
}

// replySuffix is appended to generated replies. count is the number of
// exchanges recorded before this turn.
func replySuffix(count, maxInteractions int) string {
	if maxInteractions <= 0 {
		return suffixOpen
	}
	switch remaining := maxInteractions - (count + 1); {
	case remaining <= 0:
		return suffixClosing
	case remaining == 1:
		return suffixOneMore
	default:
		return suffixOpen
	}
}
