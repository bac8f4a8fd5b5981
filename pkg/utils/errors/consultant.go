package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Consultant error taxonomy.
var (
	// ErrConfig: missing provider credentials, undefined embedding model,
	// or a vector store dimension that disagrees with the embedder.
	ErrConfig = Register(&Errno{
		Code:      MakeCode(ServiceConsultant, CategoryConfig, 1),
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.FailedPrecondition,
		MessageEN: "Consultant configuration error",
		MessageUK: "Помилка конфігурації консультанта",
	})

	ErrProviderUnavailable = Register(&Errno{
		Code:      MakeCode(ServiceThirdPartyLLM, CategoryNetwork, 1),
		HTTP:      http.StatusServiceUnavailable,
		GRPCCode:  codes.Unavailable,
		MessageEN: "AI provider unavailable",
		MessageUK: "AI-провайдер недоступний",
	})

	// ErrEmbeddingShape is logged, never returned to callers: vectors are repaired.
	ErrEmbeddingShape = Register(&Errno{
		Code:      MakeCode(ServiceThirdPartyLLM, CategoryInternal, 2),
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.Internal,
		MessageEN: "Embedding has unexpected shape",
		MessageUK: "Embedding має неочікувану форму",
	})

	ErrNoResults = Register(&Errno{
		Code:      MakeCode(ServiceConsultant, CategoryResource, 1),
		HTTP:      http.StatusNotFound,
		GRPCCode:  codes.NotFound,
		MessageEN: "No relevant knowledge found",
		MessageUK: "Релевантних знань не знайдено",
	})

	ErrValidation = Register(&Errno{
		Code:      MakeCode(ServiceConsultant, CategoryRequest, 1),
		HTTP:      http.StatusBadRequest,
		GRPCCode:  codes.InvalidArgument,
		MessageEN: "Validation failed",
		MessageUK: "Помилка валідації",
	})

	ErrEmptyQuery = Register(&Errno{
		Code:      MakeCode(ServiceConsultant, CategoryRequest, 2),
		HTTP:      http.StatusBadRequest,
		GRPCCode:  codes.InvalidArgument,
		MessageEN: "Query must not be empty",
		MessageUK: "Запит не може бути порожнім",
	})

	ErrUnsupportedLanguage = Register(&Errno{
		Code:      MakeCode(ServiceConsultant, CategoryRequest, 3),
		HTTP:      http.StatusBadRequest,
		GRPCCode:  codes.InvalidArgument,
		MessageEN: "Unsupported language",
		MessageUK: "Мова не підтримується",
	})

	ErrInvalidSessionID = Register(&Errno{
		Code:      MakeCode(ServiceConsultant, CategoryRequest, 4),
		HTTP:      http.StatusBadRequest,
		GRPCCode:  codes.InvalidArgument,
		MessageEN: "Malformed session id",
		MessageUK: "Некоректний ідентифікатор сесії",
	})

	ErrSessionNotFound = Register(&Errno{
		Code:      MakeCode(ServiceConsultant, CategoryResource, 2),
		HTTP:      http.StatusNotFound,
		GRPCCode:  codes.NotFound,
		MessageEN: "Session not found",
		MessageUK: "Сесію не знайдено",
	})

	ErrEntityNotFound = Register(&Errno{
		Code:      MakeCode(ServiceConsultant, CategoryResource, 3),
		HTTP:      http.StatusNotFound,
		GRPCCode:  codes.NotFound,
		MessageEN: "Indexable entity not found",
		MessageUK: "Об'єкт для індексації не знайдено",
	})

	// ErrConcurrencyConflict: another turn for the same session is in flight.
	ErrConcurrencyConflict = Register(&Errno{
		Code:      MakeCode(ServiceConsultant, CategoryConflict, 1),
		HTTP:      http.StatusConflict,
		GRPCCode:  codes.Aborted,
		MessageEN: "Another turn for this session is in progress",
		MessageUK: "Попереднє повідомлення ще обробляється",
	})

	// ErrStateInvariant signals a bug: the clarification gate was bypassed.
	ErrStateInvariant = Register(&Errno{
		Code:      MakeCode(ServiceConsultant, CategoryInternal, 1),
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.Internal,
		MessageEN: "Session state invariant violated",
		MessageUK: "Порушено інваріант стану сесії",
	})
)

// Learning loop and quote pipeline.
var (
	ErrPatternNotFound = Register(&Errno{
		Code:      MakeCode(ServiceLearning, CategoryResource, 1),
		HTTP:      http.StatusNotFound,
		GRPCCode:  codes.NotFound,
		MessageEN: "Learning pattern not found",
		MessageUK: "Паттерн навчання не знайдено",
	})

	ErrPatternTransition = Register(&Errno{
		Code:      MakeCode(ServiceLearning, CategoryConflict, 1),
		HTTP:      http.StatusConflict,
		GRPCCode:  codes.FailedPrecondition,
		MessageEN: "Invalid learning pattern status transition",
		MessageUK: "Недопустима зміна статусу паттерна",
	})

	ErrQuoteInvalid = Register(&Errno{
		Code:      MakeCode(ServiceQuote, CategoryRequest, 1),
		HTTP:      http.StatusBadRequest,
		GRPCCode:  codes.InvalidArgument,
		MessageEN: "Quote request is incomplete",
		MessageUK: "Запит на прорахунок неповний",
	})
)
