// ABOUTME: Design-logic extraction for a single asset, image or text
// ABOUTME: Flow: describe, extract tuples, glean, augment, reformat, archseek, metadata
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/danruili/archlogic/internal/llm"
	"github.com/danruili/archlogic/internal/models"
)

// LLM is the chat surface the extraction flow needs
type LLM interface {
	Chat(ctx context.Context, msgs []llm.Message) (string, error)
	ChatJSON(ctx context.Context, msgs []llm.Message, wantList bool) (json.RawMessage, string, error)
}

// Inquiry runs the multi-turn extraction conversation for one asset
type Inquiry struct {
	client      LLM
	maxGleaning int
}

// NewInquiry creates an inquiry runner. maxGleaning bounds the extra
// recovery rounds after the first tuple extraction.
func NewInquiry(client LLM, maxGleaning int) *Inquiry {
	if maxGleaning < 0 {
		maxGleaning = 0
	}
	return &Inquiry{client: client, maxGleaning: maxGleaning}
}

// ExtractImage extracts design logic from one image. refText, when present, is
// cross-checked against the image in an extra augmentation round.
func (q *Inquiry) ExtractImage(ctx context.Context, imagePath, refText string) ([]models.ExtractionItem, error) {
	return q.run(ctx, "", []string{imagePath}, refText)
}

// ExtractText extracts design logic plus project metadata from one text asset
func (q *Inquiry) ExtractText(ctx context.Context, text string) ([]models.ExtractionItem, error) {
	return q.run(ctx, text, nil, "")
}

func (q *Inquiry) run(ctx context.Context, text string, imagePaths []string, refText string) ([]models.ExtractionItem, error) {
	var msgs []llm.Message
	var imgDesc, augmentedDesc string

	beginning := llm.BeginningText
	if len(imagePaths) > 0 {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: llm.PromptImageDescription, ImagePaths: imagePaths})
		desc, err := q.client.Chat(ctx, msgs)
		if err != nil {
			return nil, fmt.Errorf("describing image: %w", err)
		}
		imgDesc = desc
		msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: desc})
		beginning = llm.BeginningImage
	}

	extractionPrompt := beginning + llm.PromptAssetExtraction
	if text != "" {
		extractionPrompt += "\nText: " + text + "\n"
	}

	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: extractionPrompt})
	tuples, reply, err := q.chatTuples(ctx, msgs, 1)
	if err != nil {
		return nil, fmt.Errorf("extracting tuples: %w", err)
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: reply})
	draft := tuples

	if len(draft) > 0 {
		more, msgsOut, err := q.glean(ctx, msgs)
		if err != nil {
			return nil, err
		}
		draft = append(draft, more...)
		msgs = msgsOut
	}

	if len(imagePaths) > 0 {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: llm.PromptAugmentDescription})
		augmented, err := q.client.Chat(ctx, msgs)
		if err != nil {
			return nil, fmt.Errorf("augmenting description: %w", err)
		}
		augmentedDesc = augmented
		msgs = msgs[:len(msgs)-1]

		if refText != "" {
			msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: fmt.Sprintf(llm.PromptImageAugment, refText)})
			// round 99 marks tuples recovered from the reference text
			extra, _, err := q.chatTuples(ctx, msgs, 99)
			if err != nil {
				return nil, fmt.Errorf("augmenting with reference text: %w", err)
			}
			draft = append(draft, extra...)
		}
	}

	items, err := q.reformat(ctx, draft)
	if err != nil {
		return nil, err
	}

	if imgDesc != "" {
		items = append(items,
			models.ExtractionItem{ImageDescription: imgDesc},
			models.ExtractionItem{AugmentedImageDescription: augmentedDesc})
	}

	archseek, err := q.archseek(ctx, text, imagePaths)
	if err != nil {
		return nil, err
	}
	items = append(items, models.ExtractionItem{Archseek: archseek})

	if len(imagePaths) == 0 && text != "" {
		if meta := q.metadata(ctx, text); meta != nil {
			items = append(items, models.ExtractionItem{Metadata: meta})
		}
	}

	return items, nil
}

// glean runs up to maxGleaning recovery rounds, stopping when the model
// answers NO to the continuation check
func (q *Inquiry) glean(ctx context.Context, msgs []llm.Message) ([]models.ExtractionItem, []llm.Message, error) {
	var recovered []models.ExtractionItem
	for i := 0; i < q.maxGleaning; i++ {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: llm.PromptGleanContinue})
		tuples, reply, err := q.chatTuples(ctx, msgs, i+2)
		if err != nil {
			return nil, nil, fmt.Errorf("gleaning round %d: %w", i+1, err)
		}
		recovered = append(recovered, tuples...)
		msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: reply})

		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: llm.PromptGleanCheck})
		answer, err := q.client.Chat(ctx, msgs)
		if err != nil {
			return nil, nil, fmt.Errorf("gleaning check: %w", err)
		}
		msgs = msgs[:len(msgs)-1]
		if strings.Contains(strings.ToUpper(answer), "NO") {
			break
		}
	}
	return recovered, msgs, nil
}

func (q *Inquiry) chatTuples(ctx context.Context, msgs []llm.Message, round int) ([]models.ExtractionItem, string, error) {
	raw, reply, err := q.client.ChatJSON(ctx, msgs, true)
	if err != nil {
		return nil, "", err
	}
	var tuples []models.ExtractionItem
	if err := json.Unmarshal(raw, &tuples); err != nil {
		return nil, "", fmt.Errorf("decoding tuples: %w", err)
	}
	for i := range tuples {
		tuples[i].Round = round
	}
	return tuples, reply, nil
}

// reformat normalizes the draft tuples into clean one-strategy-one-goal items
func (q *Inquiry) reformat(ctx context.Context, draft []models.ExtractionItem) ([]models.ExtractionItem, error) {
	if len(draft) == 0 {
		return nil, nil
	}
	stringified, err := json.MarshalIndent(draft, "", "  ")
	if err != nil {
		return nil, err
	}

	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: llm.PromptReformat},
		{Role: llm.RoleUser, Content: "```json\n" + string(stringified) + "\n```"},
	}
	raw, _, err := q.client.ChatJSON(ctx, msgs, true)
	if err != nil {
		return nil, fmt.Errorf("reformatting tuples: %w", err)
	}
	var items []models.ExtractionItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decoding reformatted tuples: %w", err)
	}
	return items, nil
}

// archseek runs the per-aspect critic extraction as a fresh conversation,
// with one recovery round merged into the first answer
func (q *Inquiry) archseek(ctx context.Context, text string, imagePaths []string) (map[string][]string, error) {
	var msgs []llm.Message
	if len(imagePaths) > 0 {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: llm.PromptArchseek, ImagePaths: imagePaths})
	} else {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: llm.PromptArchseek + "\nText: " + text})
	}

	raw, reply, err := q.client.ChatJSON(ctx, msgs, false)
	if err != nil {
		return nil, fmt.Errorf("archseek extraction: %w", err)
	}
	aspects, err := decodeAspects(raw)
	if err != nil {
		return nil, err
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: reply})

	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: llm.PromptGleanContinue})
	raw, _, err = q.client.ChatJSON(ctx, msgs, false)
	if err != nil {
		return nil, fmt.Errorf("archseek gleaning: %w", err)
	}
	more, err := decodeAspects(raw)
	if err != nil {
		return nil, err
	}
	for topic, sentences := range more {
		aspects[topic] = append(aspects[topic], sentences...)
	}
	return aspects, nil
}

// metadata extracts project facts from text. Failures are tolerated since
// many texts carry no extractable metadata.
func (q *Inquiry) metadata(ctx context.Context, text string) *models.ProjectMetadata {
	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: llm.PromptExtractMetadata},
		{Role: llm.RoleUser, Content: text},
	}
	raw, _, err := q.client.ChatJSON(ctx, msgs, false)
	if err != nil {
		return nil
	}
	var meta models.ProjectMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil
	}
	return &meta
}

// decodeAspects tolerates aspect values being a single string or a list
func decodeAspects(raw json.RawMessage) (map[string][]string, error) {
	var loose map[string]json.RawMessage
	if err := json.Unmarshal(raw, &loose); err != nil {
		return nil, fmt.Errorf("decoding aspects: %w", err)
	}

	aspects := make(map[string][]string, len(loose))
	for topic, value := range loose {
		var sentences []string
		if err := json.Unmarshal(value, &sentences); err == nil {
			if len(sentences) > 0 {
				aspects[topic] = sentences
			}
			continue
		}
		var one string
		if err := json.Unmarshal(value, &one); err == nil && one != "" {
			aspects[topic] = []string{one}
		}
	}
	return aspects, nil
}
