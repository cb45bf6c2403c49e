package stepcore

// Error is a lightweight string-based error, mirroring the CustomError type
// used throughout the TMC driver packages this module builds on. It is only
// ever returned from configuration/setup paths; nothing on the ISR or
// preparer hot path returns an error (see spec §7).
type Error string

func (e Error) Error() string { return string(e) }
