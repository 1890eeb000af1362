package scorer

import (
	"fmt"
	"strings"

	"github.com/CLewisMessina/wolfalert/internal/domain"
)

// promptVersion is bumped whenever the prompt wording changes, so cached
// insights produced under the old wording are recomputed.
const promptVersion = "v1"

// maxContentChars bounds how much article body is sent to the model.
const maxContentChars = 6000

const systemPrompt = `You are a business intelligence analyst. You assess how a news article
affects a specific professional and respond with strict JSON only, no prose,
using exactly these fields:
{"summary": "...", "reasoning": "...", "impact": "threat|opportunity|watch", "score": 0.0}
"summary" is a two-sentence digest of the article. "reasoning" explains why
this matters to the professional described. "impact" is exactly one of
threat, opportunity, or watch. "score" is the relevance of the article to
the professional, a number between 0 and 1.`

// buildUserPrompt renders the scoring request for one article and profile.
func buildUserPrompt(article *domain.Article, profile *domain.Profile) string {
	content := article.Content
	if len(content) > maxContentChars {
		content = content[:maxContentChars]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Professional: works in the %s industry, %s department, at the %s level.\n\n",
		profile.Industry, profile.Department, profile.RoleLevel)
	fmt.Fprintf(&b, "Article title: %s\n", article.Title)
	fmt.Fprintf(&b, "Published: %s\n\n", article.PublishedAt.Format("2006-01-02"))
	fmt.Fprintf(&b, "Article content:\n%s\n", content)
	return b.String()
}
