package model

import "time"

const (
	CourseOngoing   = "Ongoing"
	CourseCompleted = "Completed"
)

// StudentCourse 学生的课程记录，由管理员创建和维护
// swagger:model StudentCourse
type StudentCourse struct {
	BaseModel
	StudentID            uint       `gorm:"index;not null" json:"studentId"`
	Student              *User      `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"student,omitempty"`
	CourseName           string     `gorm:"size:200;not null" json:"courseName"`
	StartDate            time.Time  `gorm:"type:date;not null" json:"startDate"`
	EndDate              *time.Time `gorm:"type:date" json:"endDate"`
	HoursSpent           int        `gorm:"default:0" json:"hoursSpent"`
	CompletionPercentage int        `gorm:"default:0" json:"completionPercentage"`
	Status               string     `gorm:"size:50;not null" json:"status"`
}

func (StudentCourse) TableName() string {
	return "student_courses"
}

func (c *StudentCourse) IsCompleted() bool {
	return c.Status == CourseCompleted
}
