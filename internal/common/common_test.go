package common

import (
	"context"
	"errors"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var _ = Describe("Validator", func() {
	It("passes a valid invoice header", func() {
		err := NewValidator().
			Field("invoice_number", "A-123", Required, MaxLen(64)).
			Field("invoice_date", "2024-03-15", Required, ISODate).
			Field("items", 2, MinCount(1)).
			Field("quantity", decimal.RequireFromString("1.5"), PositiveDecimal).
			Error()
		Expect(err).NotTo(HaveOccurred())
	})

	It("collects every failure in field order", func() {
		blank := "  "
		v := NewValidator().
			Field("invoice_number", &blank, Required).
			Field("invoice_date", "15/03/2024", ISODate).
			Field("items", 0, MinCount(1)).
			Field("unit_price", decimal.Zero, PositiveDecimal).
			Field("provider_name", "Distribuidora Norte", MaxLen(5))

		fields := make([]string, 0, len(v.Failures()))
		for _, f := range v.Failures() {
			fields = append(fields, f.Field)
		}
		Expect(fields).To(Equal([]string{"invoice_number", "invoice_date", "items", "unit_price", "provider_name"}))

		err := v.Error()
		Expect(err).To(MatchError(ErrValidation))
		Expect(ErrorCode(err)).To(Equal(CodeValidation))
		Expect(err.Error()).To(ContainSubstring("invoice_date must be a YYYY-MM-DD date"))
	})

	It("counts runes, not bytes", func() {
		Expect(MaxLen(7)("name", "Lácteos")).To(BeNil())
	})

	It("treats a nil string pointer as missing", func() {
		var p *string
		Expect(Required("invoice_number", p)).NotTo(BeNil())
	})

	It("leaves an empty date to Required", func() {
		Expect(ISODate("invoice_date", "")).To(BeNil())
	})

	It("rejects a value that is not a decimal", func() {
		Expect(PositiveDecimal("quantity", 3)).NotTo(BeNil())
	})
})

var _ = Describe("error mapping", func() {
	DescribeTable("maps the taxonomy",
		func(err error, grpc codes.Code, httpStatus int) {
			Expect(status.Code(StatusFromError(err))).To(Equal(grpc))
			Expect(HTTPStatus(err)).To(Equal(httpStatus))
		},
		Entry("input rejected", InputRejected("gif"), codes.InvalidArgument, http.StatusUnsupportedMediaType),
		Entry("validation", ValidationFailed("invoice_number is required"), codes.InvalidArgument, http.StatusUnprocessableEntity),
		Entry("no session", NoSession(), codes.NotFound, http.StatusNotFound),
		Entry("ambiguity", MatchingAmbiguity(2), codes.FailedPrecondition, http.StatusConflict),
		Entry("superseded", Superseded(), codes.Aborted, http.StatusConflict),
		Entry("commit failed", CommitFailed(errors.New("db down")), codes.Unavailable, http.StatusBadGateway),
		Entry("recognition failed", RecognitionFailed(errors.New("no text")), codes.Unavailable, http.StatusBadGateway),
		Entry("anything else", errors.New("boom"), codes.Internal, http.StatusInternalServerError),
	)

	It("keeps the cause reachable", func() {
		cause := errors.New("connection refused")
		err := CommitFailed(cause)
		Expect(err).To(MatchError(ErrCommitFailed))
		Expect(errors.Is(err, cause)).To(BeTrue())
	})

	It("passes gRPC statuses through", func() {
		err := InvalidArgumentErrorf("bad %s", "index")
		Expect(StatusFromError(err)).To(Equal(err))
	})

	It("wraps with context and keeps nil nil", func() {
		Expect(WrapError(nil, "ctx")).To(BeNil())
		Expect(WrapError(ErrDatabase, "list invoices")).To(MatchError(ErrDatabase))
	})
})

var _ = Describe("request id", func() {
	It("round-trips through the context", func() {
		ctx := WithRequestID(context.Background(), "req-1")
		Expect(RequestIDFromContext(ctx)).To(Equal("req-1"))
	})

	It("is empty when absent", func() {
		Expect(RequestIDFromContext(context.Background())).To(BeEmpty())
		Expect(RequestIDFromContext(WithRequestID(context.Background(), ""))).To(BeEmpty())
	})
})
