package evaluation

import (
	"fmt"
	"strings"
)

// aspectGuidance is folded into the group prompts so the model scores each
// aspect against the same criteria on every run.
var aspectGuidance = map[string]string{
	AspectWriting:       "clarity, tone and conciseness of the writing",
	AspectSpelling:      "spelling and grammar correctness",
	AspectRelevance:     "how well the experience matches the desired position",
	AspectKeywords:      "presence of role-specific keywords recruiters and ATS systems search for",
	AspectAchievements:  "use of concrete, quantified achievements instead of duty lists",
	AspectStructure:     "logical section ordering and completeness",
	AspectFormatting:    "visual consistency, readability and length",
	AspectCustomization: "how tailored the CV is to the target role and country",
}

func isCVPrompt() (system, prompt string) {
	system = `You review uploaded documents for a CV evaluation service.
Answer with a JSON object of the shape {"is_cv": boolean}.`
	prompt = "Is the attached document a CV / résumé?"
	return system, prompt
}

func groupPrompt(aspects []string, form Form) (system, prompt string) {
	var criteria strings.Builder
	for _, a := range aspects {
		fmt.Fprintf(&criteria, "- %q: %s\n", a, aspectGuidance[a])
	}

	system = fmt.Sprintf(`You are an experienced recruiter evaluating a candidate's CV.
Score each requested aspect from 1 (poor) to 10 (excellent) and give short,
actionable feedback. Write all feedback in %s.
Answer with a JSON object keyed by aspect name, each value of the shape
{"score": number, "feedback": string}. Evaluate exactly these aspects:
%s`, form.Language, criteria.String())

	var b strings.Builder
	fmt.Fprintf(&b, "The candidate is applying for the position: %s.\n", form.DesiredPosition)
	if form.Skills != "" {
		fmt.Fprintf(&b, "Self-reported skills: %s.\n", form.Skills)
	}
	if form.Tools != "" {
		fmt.Fprintf(&b, "Tools they work with: %s.\n", form.Tools)
	}
	if form.Country != "" {
		fmt.Fprintf(&b, "They are applying in: %s.\n", form.Country)
	}
	b.WriteString("Evaluate the attached CV.")
	return system, b.String()
}

func summaryPrompt(results map[string]aspectResult, form Form) (system, prompt string) {
	system = fmt.Sprintf(`You are an experienced recruiter. Based on the per-aspect
evaluation below, write an overall verdict of the CV for the stated position:
the main strengths, the two or three changes with the biggest impact, and an
overall score from 1 to 10. Write in %s.
Answer with a JSON object of the shape {"score": number, "feedback": string}.`, form.Language)

	var b strings.Builder
	fmt.Fprintf(&b, "Position: %s.\nPer-aspect results:\n", form.DesiredPosition)
	for aspect, r := range results {
		if r.Score == 0 {
			continue
		}
		fmt.Fprintf(&b, "- %s: %d/10. %s\n", aspect, r.Score, r.Feedback)
	}
	return system, b.String()
}
