package nostr

import (
	"sort"
	"strconv"
	"time"

	goNostr "github.com/nbd-wtf/go-nostr"
	"github.com/sebdeveloper6952/dvmjob/domain"
)

const (
	KindReqTextExtraction    = 5000
	KindReqTextSummarization = 5001
	KindReqTextTranslation   = 5002
	KindReqTextGeneration    = 5050
	KindReqImageGeneration   = 5100
	KindReqTextToSpeech      = 5250
	KindReqContentDiscovery  = 5300

	KindJobFeedback = 7000

	// results are published with the request kind shifted by this offset
	ResultKindOffset = 1000

	minRequestKind = 5000
	maxRequestKind = 5999

	InputTypeText   = "text"
	OutputTextPlain = "text/plain"
)

func ResultKind(requestKind int) int {
	return requestKind + ResultKindOffset
}

func IsRequestKind(kind int) bool {
	return kind >= minRequestKind && kind <= maxRequestKind
}

// NewJobRequestEvent builds the unsigned job request. Params are emitted sorted by key so
// that the same request always produces the same tag list.
func NewJobRequestEvent(
	pk string,
	req *domain.JobRequest,
	providerPk string,
) *goNostr.Event {
	createdAt := goNostr.Now()
	if !req.CreatedAt.IsZero() {
		createdAt = goNostr.Timestamp(req.CreatedAt.Unix())
	}

	tags := goNostr.Tags{
		{"i", req.Input, InputTypeText},
		{"output", OutputTextPlain},
	}

	if providerPk != "" {
		tags = append(tags, goNostr.Tag{"p", providerPk})
	}

	keys := make([]string, 0, len(req.Params))
	for k := range req.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		tags = append(tags, goNostr.Tag{"param", k, req.Params[k]})
	}

	return &goNostr.Event{
		PubKey:    pk,
		CreatedAt: createdAt,
		Kind:      req.Kind,
		Tags:      tags,
		Content:   "",
	}
}

// FeedbackFromEvent never fails: unknown or malformed tags leave the matching field at
// its zero value.
func FeedbackFromEvent(e *goNostr.Event) *domain.Feedback {
	var (
		status      string
		invoice     string
		amountMsats int64
	)

	for i := range e.Tags {
		if len(e.Tags[i]) < 2 {
			continue
		}

		switch e.Tags[i][0] {
		case "status":
			status = e.Tags[i][1]
		case "amount":
			amountMsats = parseMsats(e.Tags[i][1])
			if len(e.Tags[i]) > 2 {
				invoice = e.Tags[i][2]
			}
		}
	}

	feedback := &domain.Feedback{
		Status:  status,
		Content: e.Content,
	}

	// payment-required without an invoice is not payable
	if status == domain.FeedbackPaymentRequired && invoice != "" {
		feedback.Payment = &domain.PaymentInfo{
			Invoice:     invoice,
			AmountMsats: amountMsats,
		}
	}

	return feedback
}

func parseMsats(s string) int64 {
	msats, err := strconv.ParseInt(s, 10, 64)
	if err != nil || msats < 0 {
		return 0
	}

	return msats
}

func JobResultFromEvent(e *goNostr.Event) *domain.JobResult {
	return &domain.JobResult{
		EventID:   e.ID,
		Content:   e.Content,
		Kind:      e.Kind,
		Timestamp: int64(e.CreatedAt),
	}
}

func FeedbackFilter(jobRequestID string) goNostr.Filter {
	return goNostr.Filter{
		Kinds: []int{KindJobFeedback},
		Tags:  goNostr.TagMap{"e": []string{jobRequestID}},
	}
}

func ResultFilter(jobRequestID string, resultKind int) goNostr.Filter {
	return goNostr.Filter{
		Kinds: []int{resultKind},
		Tags:  goNostr.TagMap{"e": []string{jobRequestID}},
	}
}

// NewFeedbackEvent is the provider side of FeedbackFromEvent. It is used to simulate
// providers against a local transport.
func NewFeedbackEvent(
	pk string,
	jobRequestID string,
	customerPk string,
	status string,
	payment *domain.PaymentInfo,
) *goNostr.Event {
	e := &goNostr.Event{
		PubKey:    pk,
		CreatedAt: goNostr.Timestamp(time.Now().Unix()),
		Kind:      KindJobFeedback,
		Tags: goNostr.Tags{
			{"e", jobRequestID},
			{"p", customerPk},
			{"status", status},
		},
	}

	if payment != nil {
		e.Tags = append(e.Tags, goNostr.Tag{
			"amount",
			strconv.FormatInt(payment.AmountMsats, 10),
			payment.Invoice,
		})
	}

	return e
}

func NewJobResultEvent(
	pk string,
	jobRequest *goNostr.Event,
	content string,
) *goNostr.Event {
	return &goNostr.Event{
		PubKey:    pk,
		CreatedAt: goNostr.Now(),
		Kind:      ResultKind(jobRequest.Kind),
		Content:   content,
		Tags: goNostr.Tags{
			{"e", jobRequest.ID},
			{"p", jobRequest.PubKey},
		},
	}
}
