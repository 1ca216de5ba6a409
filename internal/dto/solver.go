package dto

// SolveRequest describes the domain of one solver run. When AssignmentIDs is
// empty every active assignment of the term is scheduled; when RoomIDs is
// empty all rooms are candidates.
type SolveRequest struct {
	AcademicYear  int      `json:"academicYear" validate:"required,min=2000"`
	Semester      int      `json:"semester" validate:"required,min=1,max=2"`
	AssignmentIDs []string `json:"assignmentIds" validate:"omitempty,dive,required"`
	RoomIDs       []string `json:"roomIds" validate:"omitempty,dive,required"`
	DateFrom      string   `json:"dateFrom" validate:"required"`
	DateTo        string   `json:"dateTo" validate:"required"`
	Holidays      []string `json:"holidays" validate:"omitempty,dive,required"`
	Seed          int64    `json:"seed"`
}

// LessonPlacement is one placed search unit in a solver result.
type LessonPlacement struct {
	UnitID       string `json:"unitId"`
	AssignmentID string `json:"assignmentId"`
	Occurrence   int    `json:"occurrence"`
	RoomID       string `json:"roomId,omitempty"`
	Date         string `json:"date,omitempty"`
	StartTime    string `json:"startTime,omitempty"`
	EndTime      string `json:"endTime,omitempty"`
	Unassigned   bool   `json:"unassigned"`
}

// SolveResponse is a terminated solver run.
type SolveResponse struct {
	HardScore  int               `json:"hardScore"`
	SoftScore  int               `json:"softScore"`
	Complete   bool              `json:"complete"`
	Cancelled  bool              `json:"cancelled"`
	Unassigned int               `json:"unassigned"`
	Iterations int               `json:"iterations"`
	ElapsedMs  int64             `json:"elapsedMs"`
	Placements []LessonPlacement `json:"placements"`
}

// JobResponse reports a submitted or inspected solver job.
type JobResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// ApplySolutionRequest commits a finished job's placements to a timetable.
type ApplySolutionRequest struct {
	JobID string `json:"jobId" validate:"required"`
}
