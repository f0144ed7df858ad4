package models

// CompleteMapping is one row of the roster join linking a student to their
// clinic, client, and both directors.
type CompleteMapping struct {
	StudentID           string `json:"studentId"`
	StudentName         string `json:"studentName"`
	StudentEmail        string `json:"studentEmail"`
	StudentClinicID     string `json:"studentClinicId"`
	StudentClinicName   string `json:"studentClinicName"`
	StudentRole         string `json:"studentRole"`
	ClientID            string `json:"clientId"`
	ClientName          string `json:"clientName"`
	ClientStatus        string `json:"clientStatus"`
	ClinicDirectorID    string `json:"clinicDirectorId"`
	ClinicDirectorName  string `json:"clinicDirectorName"`
	ClinicDirectorEmail string `json:"clinicDirectorEmail"`
	ClientDirectorID    string `json:"clientDirectorId"`
	ClientDirectorName  string `json:"clientDirectorName"`
	ClientDirectorEmail string `json:"clientDirectorEmail"`
	Semester            string `json:"semester"`
}

// Document is an uploaded file registered against a client engagement.
type Document struct {
	ID          string `json:"id"`
	StudentID   string `json:"studentId"`
	ClientID    string `json:"clientId"`
	ClientName  string `json:"clientName"`
	FileName    string `json:"fileName"`
	FileURL     string `json:"fileUrl"`
	FileType    string `json:"fileType"`
	FileSize    int64  `json:"fileSize"`
	Description string `json:"description"`
	UploadedBy  string `json:"uploadedBy"`
	UploadedAt  string `json:"uploadedAt"`
}
