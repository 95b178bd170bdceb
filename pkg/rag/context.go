// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/kadirpekel/fluxo/pkg/provider"
	"github.com/kadirpekel/fluxo/pkg/vectorstore"
)

// Strategy selects how a ContextProvider builds its search query from a
// message history.
type Strategy string

const (
	// StrategyLastMessage uses only the most recent user message.
	StrategyLastMessage Strategy = "last_message"
	// StrategyConversation concatenates every user and assistant message.
	StrategyConversation Strategy = "conversation"
)

// Context is the pre-invocation payload a ContextProvider prepends to an
// agent's messages. An empty Context (no Messages) means no relevant
// passages were found.
type Context struct {
	Messages []provider.ChatMessage
}

// ContextProvider retrieves passages relevant to a message history and
// formats them as chat messages ready to prepend to an agent's input.
type ContextProvider struct {
	Store         vectorstore.Store
	Embeddings    provider.EmbeddingClient
	Collection    string
	TopK          int
	MinScore      float64
	Strategy      Strategy
	ContextPrompt string
	Namespace     string
	Filter        vectorstore.Filter
}

// defaultContextPrompt precedes every retrieved passage when the config
// doesn't declare one explicitly.
const defaultContextPrompt = "Use the following context to answer the question:"

// Invoking builds a query from messages, embeds it, searches the store,
// and returns a Context containing the fixed instruction message
// followed by one message per match formatted as
// "[i] <source-or-id> (score=<s.sss>)\n<snippet>". Returns an empty
// Context when no user/assistant text is present or no matches are found.
func (p *ContextProvider) Invoking(ctx context.Context, messages []provider.ChatMessage) (Context, error) {
	filtered := make([]provider.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		if m.Role == provider.RoleUser || m.Role == provider.RoleAssistant {
			filtered = append(filtered, m)
		}
	}
	if len(filtered) == 0 {
		return Context{}, nil
	}

	query := p.buildQuery(filtered)
	if query == "" {
		return Context{}, nil
	}

	vectors, err := p.Embeddings.Embed(ctx, []string{query})
	if err != nil {
		return Context{}, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return Context{}, nil
	}

	topK := p.TopK
	if topK <= 0 {
		topK = 5
	}

	matches, err := p.Store.Search(ctx, p.Collection, vectors[0], topK, p.Filter)
	if err != nil {
		return Context{}, fmt.Errorf("similarity search: %w", err)
	}

	kept := matches[:0]
	for _, m := range matches {
		if m.Score >= p.MinScore {
			kept = append(kept, m)
		}
	}
	if len(kept) == 0 {
		return Context{}, nil
	}

	prompt := p.ContextPrompt
	if prompt == "" {
		prompt = defaultContextPrompt
	}

	out := Context{Messages: make([]provider.ChatMessage, 0, len(kept)+1)}
	out.Messages = append(out.Messages, provider.ChatMessage{Role: provider.RoleUser, Content: prompt})
	for i, m := range kept {
		out.Messages = append(out.Messages, provider.ChatMessage{Role: provider.RoleUser, Content: formatMatch(i+1, m)})
	}
	return out, nil
}

func (p *ContextProvider) buildQuery(messages []provider.ChatMessage) string {
	if p.Strategy == StrategyConversation {
		lines := make([]string, 0, len(messages))
		for _, m := range messages {
			if text := strings.TrimSpace(m.Content); text != "" {
				lines = append(lines, text)
			}
		}
		return strings.Join(lines, "\n")
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == provider.RoleUser {
			return strings.TrimSpace(messages[i].Content)
		}
	}
	return strings.TrimSpace(messages[len(messages)-1].Content)
}

func formatMatch(index int, match vectorstore.Match) string {
	source := fmt.Sprint(match.Metadata["source"])
	if source == "" || source == "<nil>" {
		if path, ok := match.Metadata["path"]; ok {
			source = fmt.Sprint(path)
		} else {
			source = match.DocumentID
		}
	}
	header := fmt.Sprintf("[%d] %s (score=%.3f)", index, source, match.Score)
	chunk := strings.TrimSpace(match.Content)
	if chunk == "" {
		chunk = "(empty passage)"
	}
	return header + "\n" + chunk
}

// ForCollections returns a ContextProvider scoped to the named knowledge
// collections via a collection_id $in filter, per an agent's
// knowledge_config declaration.
func ForCollections(base ContextProvider, collections []string) *ContextProvider {
	scoped := base
	if scoped.Filter == nil {
		scoped.Filter = vectorstore.Filter{}
	} else {
		clone := make(vectorstore.Filter, len(scoped.Filter))
		for k, v := range scoped.Filter {
			clone[k] = v
		}
		scoped.Filter = clone
	}
	scoped.Filter["collection_id"] = vectorstore.In(toAny(collections)...)
	return &scoped
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
