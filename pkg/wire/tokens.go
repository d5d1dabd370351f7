package wire

// Command labels accepted in the authenticated command loop.
const (
	CmdPut      = "put"
	CmdGet      = "get"
	CmdMultiPut = "multiput"
	CmdMultiGet = "multiget"
	CmdGetWhen  = "getwhen"
	CmdExit     = "exit"
)

// Response tokens.
const (
	PutOK            = "Put_Ok"
	GetOK            = "Get_Ok"
	GetNotFound      = "Get_Not_Found"
	MultiPutOK       = "MultiPut_Ok"
	GetWhenOK        = "GetWhen_Ok"
	GetWhenNotFound  = "GetWhen_Not_Found"
	GetWhenTimeout   = "GetWhen_Timeout"
	UnknownCommand   = "Unknown command"
	LoginOK          = "Login successful!"
	LoginFailed      = "Login failed!"
	RegistrationOK   = "Registration successful!"
	RegistrationFail = "Registration failed: "
)

// Authentication prompts sent by the server.
const (
	PromptMenu           = "1-Login, 2-Register"
	PromptUsername       = "Enter username:"
	PromptPassword       = "Enter password:"
	PromptNewUsername    = "Enter new username:"
	PromptNewPassword    = "Enter new password:"
	PromptUnknownUser    = "User does not exist. 1-Try Again, 2-Register"
	PromptBadPassword    = "Incorrect password. 1-Try Again"
	PromptTooManyRetries = "Too many failed attempts"
	InvalidChoice        = "Invalid choice"
)

// Menu choices sent by the client.
const (
	ChoiceLogin    = "1"
	ChoiceRegister = "2"
	ChoiceRetry    = "1"
)
