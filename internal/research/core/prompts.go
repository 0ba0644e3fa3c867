package core

import (
	"fmt"
	"strings"
	"time"
)

const clarifyPromptTemplate = `You are part of a group of agents that does deep research using current information available on the web.

Here is the conversation so far:
<Messages>
%s
</Messages>

Today's date is %s.

Determine if you need to ask clarifying questions to provide more relevant research. If the user's query is ambiguous you should ask for clarification. If the user's query is clear and you can make progress with research, do not ask for clarification.

It is very important to minimize unnecessary delays in the research process. ONLY ask if the question is really vague or can be interpreted in multiple ways.

IMPORTANT: respond with only valid JSON, no other text before or after.

If clarification IS needed respond with:
{"need_clarification": true, "question": "<your clarifying question>", "verification": ""}

If clarification is not needed respond with:
{"need_clarification": false, "question": "", "verification": "<message stating that you will now start research based on the provided information>"}`

const focusPromptTemplate = `You are a principal investigator scoping a research sprint.
Given a research topic, narrow the focus, define key research questions, and identify what data, variables and findings to search for.

Research Topic: %s

Return JSON with keys: focus (string), questions (3-5 items).
Questions MUST address:
- What data has been used to study this?
- What variables or features are commonly analyzed?
- What has been found so far (high-level findings)?`

const refocusPromptTemplate = `You are a principal investigator steering an ongoing research sprint.

Current Focus: %s
Iteration: %d

Questions still unanswered:
%s

Suggested next directions:
%s

Refine the focus and research questions for the next pass. Keep the focus close to the original topic; sharpen it toward what is still missing.

Return JSON with keys: focus (string), questions (3-5 items).`

const queryGenPromptTemplate = `You are a researcher generating targeted search queries. You are part of a group of agents that does deep research using current information available on the web.

Research Topic: %s

Key Research Questions:
%s

Current iteration: %d. Today's date is %s.

Generate 3-5 specific search queries that will:
1. Answer the key research questions
2. Explore different aspects: existing findings, recent developments, future directions and trends
3. Build on or diverge from previous queries if this is iteration > 0

Return as JSON array of strings: ["query1", "query2", ...]`

const summarizePromptTemplate = `Analyze this web source and extract key information relevant to the research.

Research Focus: %s

Research Questions:
%s

Source:
%s (%s)
%s

Extract:
1. Key findings relevant to the research questions
2. Important data, statistics, or quotes
3. Note which questions this source helps answer

Provide a concise summary (3-5 sentences).`

const synthesizePromptTemplate = `Synthesize these individual source summaries into a comprehensive research summary.

Research Focus: %s

Research Questions:
%s

Individual Source Summaries:
%s

Create a comprehensive synthesis that:
1. Organizes findings by research question
2. Identifies patterns and themes across sources
3. Notes contradictions or gaps
4. Highlights key data and evidence

Provide a well-structured summary.`

const evaluatePromptTemplate = `You are a principal investigator scoping a research sprint.
You decided on the following research questions to investigate the topic: %s

Research Questions:
%s

Evaluate whether this summary sufficiently answers the research questions and provides a comprehensive understanding of the topic.

%s

Return JSON with keys:
- satisfied (bool): are all questions sufficiently answered, with clear and evidence based answers?
- unanswered (list): which questions still need answers?
- next_directions (list): if not satisfied, what should be searched next?`

const reportPromptTemplate = `Generate a comprehensive research report. You are not creating new research, but compiling and organizing the findings from the research process into a coherent document.

Research Focus: %s

Research Questions:
%s

Accumulated Findings:
%s

Structure:
# %s

## Overview
Brief summary of the research

## Key Findings
- Create a bullet point for each major finding
- Include relevant data, statistics, or quotes

## Detailed Analysis
In-depth examination with evidence

## Conclusion
Final takeaways

Use Markdown formatting and be specific.`

func buildClarifyPrompt(turns []Turn) string {
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
	}
	return fmt.Sprintf(clarifyPromptTemplate, strings.TrimRight(b.String(), "\n"), time.Now().Format("2006-01-02"))
}

func buildFocusPrompt(brief string) string {
	return fmt.Sprintf(focusPromptTemplate, brief)
}

func buildRefocusPrompt(focus ResearchFocus, verdict *Verdict) string {
	return fmt.Sprintf(refocusPromptTemplate,
		focus.Focus,
		focus.Iteration,
		bulletList(verdict.Unanswered),
		bulletList(verdict.NextDirections))
}

func buildQueryGenPrompt(focus ResearchFocus) string {
	return fmt.Sprintf(queryGenPromptTemplate,
		focus.Focus,
		bulletList(focus.Questions),
		focus.Iteration,
		time.Now().Format("2006-01-02"))
}

func buildSummarizePrompt(focus ResearchFocus, src RawSource, maxChars int) string {
	content := src.Content
	if content == "" {
		content = src.Snippet
	}
	if maxChars > 0 && len(content) > maxChars {
		content = content[:maxChars]
	}
	return fmt.Sprintf(summarizePromptTemplate,
		focus.Focus,
		bulletList(focus.Questions),
		src.Title, src.URL,
		content)
}

func buildSynthesizePrompt(focus ResearchFocus, summaries []string) string {
	return fmt.Sprintf(synthesizePromptTemplate,
		focus.Focus,
		bulletList(focus.Questions),
		strings.Join(summaries, "\n\n---\n\n"))
}

func buildEvaluatePrompt(focus ResearchFocus, summary string) string {
	return fmt.Sprintf(evaluatePromptTemplate,
		focus.Focus,
		bulletList(focus.Questions),
		summary)
}

func buildReportPrompt(focus ResearchFocus, findings []string) string {
	return fmt.Sprintf(reportPromptTemplate,
		focus.Focus,
		bulletList(focus.Questions),
		strings.Join(findings, "\n\n"),
		focus.Focus)
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "- (none)"
	}
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "- %s\n", it)
	}
	return strings.TrimRight(b.String(), "\n")
}
