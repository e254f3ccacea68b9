package domain

// OtpPurpose scopes a one-time code to the flow that issued it.
type OtpPurpose string

const (
	OtpRegister OtpPurpose = "REGISTER"
	OtpReset    OtpPurpose = "RESET"
)

// Subject is the mail subject line used when dispatching a code.
func (p OtpPurpose) Subject() string {
	if p == OtpRegister {
		return "Verify your email"
	}
	return "Reset your password"
}
