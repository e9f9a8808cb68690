// Package enrich post-processes fetched articles before they are stored:
// keyword-based categorization for articles that arrive uncategorized, and
// cross-source deduplication by id and near-identical title.
package enrich

import (
	"regexp"
	"strings"
)

// categoryRule matches a category against a pile of keyword patterns. Plain
// terms are substring matches; \b-anchored ones respect word boundaries so
// that "html" does not light up "ml".
type categoryRule struct {
	name    string
	pattern *regexp.Regexp
}

func rule(name string, terms ...string) categoryRule {
	return categoryRule{name: name, pattern: regexp.MustCompile(strings.Join(terms, "|"))}
}

var categoryRules = []categoryRule{
	rule("NLP",
		`\bnlp\b`, "natural language", "language model", "text generation",
		"sentiment", "translation", "transformer", "bert", "gpt", "chatbot",
		"dialogue", "question answering", "summarization", "named entity",
		"parsing", "tokeniz"),
	rule("Computer Vision",
		"computer vision", "image", "video", "object detection", "segmentation",
		"visual", "cnn", "convolutional", "recognition", "diffusion",
		"stable diffusion", "dalle", "midjourney", "image generation"),
	rule("Machine Learning",
		"machine learning", `\bml\b`, "supervised", "unsupervised",
		"classification", "regression", "clustering", "training",
		"optimization", "gradient", "loss function"),
	rule("Reinforcement Learning",
		"reinforcement learning", `\brl\b`, "reward", "agent", "policy",
		"q-learning", "rlhf", "environment"),
	rule("Generative AI",
		"generative", "generation", "diffusion", "gan", "autoencoder", "vae",
		"creative", "synthesis"),
	rule("AI Safety",
		"safety", "alignment", "harmful", "bias", "fairness", "interpretab",
		"explainab", "robustness", "adversarial", "ethics", "responsible ai"),
	rule("Robotics",
		"robot", "manipulation", "navigation", "autonomous", "control",
		"motor", "embodied"),
	rule("Neural Networks",
		"neural network", "deep learning", "layer", "architecture",
		"attention", "backprop", "activation", "neuron"),
	rule("LLM",
		`\bllm\b`, "large language model", "gpt", "claude", "llama", "gemini",
		"palm", "chatgpt", "foundation model", "instruction", "fine-tun",
		"prompt"),
}

// Categorize assigns categories to an article from keywords in its title and
// abstract. Articles that match nothing land in the catch-all "AI" bucket.
func Categorize(title, abstract string) []string {
	text := strings.ToLower(title + " " + abstract)

	var categories []string
	for _, r := range categoryRules {
		if r.pattern.MatchString(text) {
			categories = append(categories, r.name)
		}
	}
	if len(categories) == 0 {
		return []string{"AI"}
	}
	return categories
}
