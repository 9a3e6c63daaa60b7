package agent

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are an intelligent assistant with access to a knowledge base of course materials and lecture transcripts.

Your capabilities:
- Retrieve relevant information from the knowledge base
- Break down complex questions into steps
- Use tools when needed (calculations, formatting, etc.)
- Reflect on your answers and improve them

Your approach:
1. Understand the query carefully
2. Retrieve relevant context
3. Generate a thoughtful answer
4. Reflect on quality
5. Revise if needed

Be accurate, clear, and helpful.`

const planSystemPrompt = `You are a planning assistant. Given a user query, decompose it into a structured plan.

Analyze:
1. What is the main goal?
2. What sub-tasks are needed?
3. What information must be retrieved?
4. How complex is this query? (simple, moderate, or complex)

Respond with a JSON object with these keys:
- main_goal: string
- sub_tasks: array of strings
- required_information: array of strings
- complexity: string ("simple", "moderate", or "complex")

Be specific and actionable.`

const reflectSystemPrompt = `You are a critical assistant that evaluates answer quality.

Assess the answer based on:
1. Accuracy - Is the information correct?
2. Completeness - Does it fully address the query?
3. Clarity - Is it well-explained?
4. Relevance - Does it stay on topic?
5. Evidence - Is it supported by the context?

Respond with a JSON object with these keys:
- confidence_score: float (0.0-1.0)
- accuracy: float (0.0-1.0)
- completeness: float (0.0-1.0)
- clarity: float (0.0-1.0)
- relevance: float (0.0-1.0)
- is_satisfactory: boolean
- strengths: array of strings
- weaknesses: array of strings
- suggestions: array of strings
- missing_information: array of strings

Be honest and constructive. Identify both strengths and areas for improvement.`

const toolSelectSystemPrompt = `You are a helpful assistant with access to tools. Decide which tools to call based on the user's query.`

func formatAnswerPrompt(query string, context []string) string {
	return fmt.Sprintf(`Based on the retrieved context below, answer the user's query.

Query: %s

Retrieved Context:
%s

Your task:
1. Synthesize the information from the context
2. Answer the query directly and clearly
3. Cite sources when relevant
4. If information is insufficient, say so

Answer:`, query, strings.Join(context, "\n\n---\n\n"))
}

func formatRevisionPrompt(query, previousAnswer, feedback string, context []string) string {
	return fmt.Sprintf(`You previously answered a query, but reflection identified areas for improvement.

Original Query: %s

Previous Answer:
%s

Reflection Feedback:
%s

Retrieved Context (may include new information):
%s

Provide an improved answer that addresses the feedback:`, query, previousAnswer, feedback, strings.Join(context, "\n\n---\n\n"))
}

func formatToolSelectionPrompt(query, contextPreview string) string {
	return fmt.Sprintf(`Query: %s

Context preview:
%s

Based on this query, determine which tools (if any) should be called and with what parameters.
Consider:
- Does the query require calculations?
- Does it need current date/time information?
- Does it need formatting (table, list)?
- Does it need additional knowledge base searches?`, query, contextPreview)
}

func formatReflectPrompt(query, answer string, context []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\nAnswer: %s\n", query, answer)
	if len(context) > 0 {
		b.WriteString("\nRetrieved Context:\n")
		b.WriteString(strings.Join(context, "\n---\n"))
		b.WriteString("\n")
	}
	b.WriteString("\nEvaluate this answer critically.")
	return b.String()
}
