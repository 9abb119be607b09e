package job

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sebdeveloper6952/dvmjob/domain"
	"github.com/sebdeveloper6952/dvmjob/identity"
	"github.com/sebdeveloper6952/dvmjob/nostr"
	"github.com/sirupsen/logrus"
)

// Submitter signs job requests and hands them to the transport.
type Submitter struct {
	transport  nostr.Transport
	providerPk string
	log        *logrus.Logger
}

func NewSubmitter(
	transport nostr.Transport,
	providerPk string,
	log *logrus.Logger,
) *Submitter {
	return &Submitter{
		transport:  transport,
		providerPk: providerPk,
		log:        log,
	}
}

// Submit returns the id of the published request event, which is what feedback and
// results refer to. A failed publish is not retried.
func (s *Submitter) Submit(
	ctx context.Context,
	signer identity.Signer,
	req *domain.JobRequest,
) (string, error) {
	if req.Kind <= 0 {
		return "", fmt.Errorf("%w: kind must be positive, got %d", domain.ErrInvalidRequest, req.Kind)
	}
	if strings.TrimSpace(req.Input) == "" {
		return "", fmt.Errorf("%w: input is required", domain.ErrInvalidRequest)
	}
	if !nostr.IsRequestKind(req.Kind) {
		s.log.Warnf("[job] kind %d is outside the job request range", req.Kind)
	}

	pk, err := signer.PublicKey(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrIdentity, err)
	}

	ev := nostr.NewJobRequestEvent(pk, req, s.providerPk)
	if err := signer.SignEvent(ctx, ev); err != nil {
		return "", fmt.Errorf("%w: sign job request %w", domain.ErrIdentity, err)
	}

	if err := s.transport.Publish(ctx, *ev); err != nil {
		if !errors.Is(err, domain.ErrPublish) {
			err = fmt.Errorf("%w: %w", domain.ErrPublish, err)
		}
		return "", err
	}
	s.log.Debugf("[job] published job request %s kind %d", ev.ID, ev.Kind)

	return ev.ID, nil
}
