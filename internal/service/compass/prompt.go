package compass

import (
	"fmt"
	"strings"
)

// QuestionType selects the advising strategy for a question.
type QuestionType string

const (
	QuestionDirectInfo      QuestionType = "direct_info"
	QuestionExploration     QuestionType = "exploration"
	QuestionSpecificProgram QuestionType = "specific_program"
	QuestionFrustration     QuestionType = "frustration"
	QuestionLogistics       QuestionType = "logistics"
	QuestionGeneral         QuestionType = "general"
)

var (
	directInfoKeywords = []string{
		"what majors", "what programs", "list majors", "available majors",
		"what degrees", "majors offered", "programs offered", "what can i study",
		"majors available", "programs available", "degree options",
	}
	explorationKeywords = []string{
		"help me pick", "help me choose", "help choosing", "help picking",
		"i'm undecided", "not sure what", "don't know what",
		"need help deciding", "can't decide", "help me decide",
	}
	programKeywords = []string{
		"biology", "chemistry", "physics", "psychology", "computer science", "nursing", "education",
	}
	frustrationKeywords = []string{
		"didn't ask", "you assumed", "why did you", "you didn't", "without asking",
	}
	logisticsKeywords = []string{
		"requirements", "credits", "apply", "admission", "prerequisites",
	}
)

// DetectQuestionType classifies question. Rules are checked in order: direct
// information requests win over exploration, which wins over program names.
func DetectQuestionType(question string) QuestionType {
	lower := strings.ToLower(strings.ReplaceAll(question, "’", "'"))

	switch {
	case hasAny(lower, directInfoKeywords):
		return QuestionDirectInfo
	case hasAny(lower, explorationKeywords):
		return QuestionExploration
	case hasAny(lower, programKeywords):
		return QuestionSpecificProgram
	case hasAny(lower, frustrationKeywords):
		return QuestionFrustration
	case hasAny(lower, logisticsKeywords):
		return QuestionLogistics
	default:
		return QuestionGeneral
	}
}

func hasAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

const directInfoPrompt = `You are a Hunter College academic advisor. The student is asking a direct informational question about majors and programs available at Hunter College.

Hunter College information from database: %s

IMPORTANT:
- Give them a comprehensive, well-organized answer about Hunter's majors and programs
- Organize by schools (Arts & Sciences, Education, Health Professions, Nursing, Social Work)
- Include both undergraduate and graduate options
- You can ask a follow-up question at the END about their interests, but answer their question fully first

Provide a thorough, organized response about Hunter College's academic offerings.`

const explorationPrompt = `You are a Hunter College advisor helping a student who needs help choosing a major.

%s
Hunter College information: %s

APPROACH:
- Don't immediately list majors or assume what they want
- Ask thoughtful questions about the subjects they enjoy, career goals, strengths and interests
- Be warm, supportive and conversational, not like a formal questionnaire

Help them explore their interests and goals before suggesting specific majors.`

const frustrationPrompt = `You are a Hunter College advisor. The student seems frustrated with your previous response, possibly because you made assumptions or didn't address what they asked.

%s
Hunter College information: %s

IMPORTANT:
- Acknowledge their frustration briefly and sincerely, without being defensive
- Answer what they are actually asking, directly

Respond with understanding and then provide what they're looking for.`

const specificProgramPrompt = `You are a Hunter College advisor. The student is asking about a specific program or major at Hunter College.

%s
Hunter College information: %s

IMPORTANT:
- Give detailed information about the program: requirements, courses and career paths when available
- If information is incomplete, say so and suggest contacting the department
- You can ask follow-up questions about their interests within the field

Provide detailed information about the program they're interested in.`

const generalPrompt = `You are a helpful Hunter College advisor. Answer the student's question naturally and conversationally.

%s
Hunter College information: %s

Be helpful, friendly and conversational. Avoid excessive formatting.`

// buildSystemPrompt assembles the instructions for qtype. Direct information
// answers ignore conversation history.
func buildSystemPrompt(qtype QuestionType, knowledge, conversation string) string {
	switch qtype {
	case QuestionDirectInfo:
		return fmt.Sprintf(directInfoPrompt, knowledge)
	case QuestionExploration:
		return fmt.Sprintf(explorationPrompt, conversation, knowledge)
	case QuestionFrustration:
		return fmt.Sprintf(frustrationPrompt, conversation, knowledge)
	case QuestionSpecificProgram:
		return fmt.Sprintf(specificProgramPrompt, conversation, knowledge)
	default:
		return fmt.Sprintf(generalPrompt, conversation, knowledge)
	}
}
