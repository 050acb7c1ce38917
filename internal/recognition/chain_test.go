package recognition

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/joseph-ayodele/invoice-intake/constants"
	"github.com/joseph-ayodele/invoice-intake/internal/common"
)

var _ = Describe("Chain", func() {
	var (
		primary, secondary *fakeRecognizer
		chain              *Chain
		doc                Document
		stages             []int
		progress           ProgressFunc
	)

	BeforeEach(func() {
		primary = &fakeRecognizer{result: Result{Path: constants.PathPrimary, Confidence: 0.9}}
		secondary = &fakeRecognizer{result: Result{Path: constants.PathSecondary, Confidence: 0.5}}
		doc = Document{Name: "f.png", MediaType: "image/png", Content: pngBytes}
		stages = nil
		progress = func(p int, _ string) { stages = append(stages, p) }
	})

	JustBeforeEach(func() {
		chain = NewChain(primary, secondary, nil)
	})

	It("uses the primary result when the primary answers", func() {
		res, outcome, err := chain.Run(context.Background(), doc, progress)
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(OutcomePrimary))
		Expect(res.Path).To(Equal(constants.PathPrimary))
		Expect(secondary.calls).To(BeZero())
		Expect(stages).To(Equal([]int{0, 10, 100}))
	})

	When("the primary is unavailable", func() {
		BeforeEach(func() {
			primary.err = common.RecognitionUnavailable(errors.New("connection refused"))
		})

		It("falls back to the secondary", func() {
			res, outcome, err := chain.Run(context.Background(), doc, progress)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(OutcomeSecondaryFallback))
			Expect(res.Path).To(Equal(constants.PathSecondary))
			Expect(secondary.calls).To(Equal(1))
			Expect(stages).To(Equal([]int{0, 10, 50, 100}))
		})

		When("the secondary fails too", func() {
			BeforeEach(func() {
				secondary.err = common.RecognitionFailed(errors.New("no text"))
			})

			It("fails terminally", func() {
				_, outcome, err := chain.Run(context.Background(), doc, nil)
				Expect(err).To(MatchError(common.ErrRecognitionFailed))
				Expect(outcome).To(Equal(OutcomeFailed))
			})
		})

		When("the context is already cancelled", func() {
			It("does not start the secondary", func() {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				_, _, err := chain.Run(ctx, doc, nil)
				Expect(err).To(MatchError(context.Canceled))
				Expect(secondary.calls).To(BeZero())
			})
		})
	})

	When("the primary fails for another reason", func() {
		BeforeEach(func() {
			primary.err = context.Canceled
		})

		It("does not fall back", func() {
			_, outcome, err := chain.Run(context.Background(), doc, nil)
			Expect(err).To(MatchError(context.Canceled))
			Expect(outcome).To(Equal(OutcomeFailed))
			Expect(secondary.calls).To(BeZero())
		})
	})

	When("no primary is configured", func() {
		JustBeforeEach(func() {
			chain = NewChain(nil, secondary, nil)
		})

		It("runs the secondary only", func() {
			_, outcome, err := chain.Run(context.Background(), doc, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(OutcomeSecondaryOnly))
		})
	})

	It("rejects invalid documents before recognizing", func() {
		doc.MediaType = "text/plain"
		doc.Content = []byte("hello")
		_, outcome, err := chain.Run(context.Background(), doc, nil)
		Expect(err).To(MatchError(common.ErrInputRejected))
		Expect(outcome).To(Equal(OutcomeFailed))
		Expect(primary.calls + secondary.calls).To(BeZero())
	})

	It("satisfies Recognizer", func() {
		var r Recognizer = chain
		res, err := r.Recognize(context.Background(), doc)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Confidence).To(Equal(0.9))
	})
})
