package report

import "fmt"

func outlinePrompt(userPrompt, contextStr string) string {
	return fmt.Sprintf(`You are a research assistant tasked with creating a report outline.
User's Report Description: "%s"

Based on the user's description and the provided information sources below, generate a report outline.
The outline should be structured to effectively answer the user's request.

Provided Information Sources:
%s

The JSON object must have a single key, "sections", which is an array of objects.
Each object in the array must have two keys:
- "title": A string for the section title (e.g., "Introduction").
- "description": A string detailing what this section should cover, referencing the provided sources by their Citation Key (e.g., "Aehle2024_Optimization").

Respond with ONLY the JSON object.`, userPrompt, contextStr)
}

func sectionPrompt(userPrompt, reportContext, sectionTitle, sectionDescription, contextStr string) string {
	return fmt.Sprintf(`You are a research assistant writing a single section of a technical report in GitHub Flavored Markdown.
Your response should ONLY be the Markdown content for this section. Do not include the section header (e.g., '## Title').

The overall goal of the report is: "%s"

Below is the report outline. You are currently writing the section marked with "--> YOU ARE HERE <--".
Previously written sections are included for context.
--- OUTLINE CONTEXT ---
%s
--- END OUTLINE CONTEXT ---

Your current section, "%s", should specifically cover: "%s"

Use the provided information sources below. You MUST cite sources using the Pandoc/Zotero format: `+"`[@CitationKey]`"+`. For example: `+"`...as shown by the data [@Aehle2024].`"+`

Provided Information Sources:
%s`, userPrompt, reportContext, sectionTitle, sectionDescription, contextStr)
}
