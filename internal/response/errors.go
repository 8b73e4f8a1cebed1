package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrStudentAccessOnly    ErrCode = "STUDENT_ACCESS_ONLY"
	ErrInstructorAccessOnly ErrCode = "INSTRUCTOR_ACCESS_ONLY"
	ErrNotRoomOwner         ErrCode = "NOT_ROOM_OWNER"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound     ErrCode = "NOT_FOUND"
	ErrRoomNotFound ErrCode = "ROOM_NOT_FOUND"

	// ─── Exam-specific ─────────────────────────────────────────────────
	ErrRoomNotActive         ErrCode = "ROOM_NOT_ACTIVE"
	ErrRoomNotJoinable       ErrCode = "ROOM_NOT_JOINABLE"
	ErrNotEnrolled           ErrCode = "NOT_ENROLLED"
	ErrInvalidQuestion       ErrCode = "INVALID_QUESTION"
	ErrQuestionNotInSession  ErrCode = "QUESTION_NOT_IN_SESSION"
	ErrNavigationNotAllowed  ErrCode = "NAVIGATION_NOT_ALLOWED"
	ErrResultNotFound        ErrCode = "RESULT_NOT_FOUND"
	ErrInsufficientQuestions ErrCode = "INSUFFICIENT_QUESTIONS"
	ErrUnknownMechanism      ErrCode = "UNKNOWN_MECHANISM"
	ErrInvalidState          ErrCode = "INVALID_STATE"
	ErrParticipantNotFound   ErrCode = "PARTICIPANT_NOT_FOUND"
	ErrLeaveNotAllowed       ErrCode = "LEAVE_NOT_ALLOWED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrStudentAccessOnly:
		return "Sumber daya ini terbatas untuk siswa."
	case ErrInstructorAccessOnly:
		return "Sumber daya ini terbatas untuk pengajar."
	case ErrNotRoomOwner:
		return "Anda bukan pembuat ruang ujian ini."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."
	case ErrRoomNotFound:
		return "Ruang ujian tidak ditemukan."

	// ─── Exam-specific ─────────────────────────────────────────────────
	case ErrRoomNotActive:
		return "Ruang ujian belum dimulai atau sudah berakhir."
	case ErrRoomNotJoinable:
		return "Ruang ujian tidak lagi menerima peserta."
	case ErrNotEnrolled:
		return "Anda belum terdaftar di ruang ujian ini."
	case ErrInvalidQuestion:
		return "Soal tidak ditemukan."
	case ErrQuestionNotInSession:
		return "Soal ini bukan bagian dari sesi ujian Anda."
	case ErrNavigationNotAllowed:
		return "Navigasi soal tidak tersedia untuk ujian adaptif."
	case ErrResultNotFound:
		return "Hasil ujian belum tersedia."
	case ErrInsufficientQuestions:
		return "Jumlah soal di bank soal tidak mencukupi."
	case ErrUnknownMechanism:
		return "Mekanisme ujian tidak dikenal."
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."
	case ErrInvalidState:
		return "Tindakan ini tidak diperbolehkan pada status saat ini."
	case ErrParticipantNotFound:
		return "Peserta tidak ditemukan di ruang ujian ini."
	case ErrLeaveNotAllowed:
		return "Tidak dapat keluar dari ruang ujian setelah mulai menjawab."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
