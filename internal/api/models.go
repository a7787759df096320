package api

import (
	"github.com/google/uuid"
	"github.com/phrazzld/taskboard-scheduler/internal/assignment"
	"github.com/phrazzld/taskboard-scheduler/internal/domain"
)

// AssignNowResponse is returned by POST /admin/assign-tasks-now.
type AssignNowResponse = assignment.PassResult

// CheckCompletedResponse is returned by POST /admin/check-completed-tasks-now.
type CheckCompletedResponse struct {
	Completed     int `json:"completed"`
	Archived      int `json:"archived"`
	Failed        int `json:"failed"`
	AssignedTasks int `json:"assignedTasks"`
}

// AssignToUserResponse is returned by POST /admin/assign-tasks-to-user/{id}.
type AssignToUserResponse struct {
	AssignedCount int `json:"assignedCount"`
}

// PremiumUser is one entry of GET /admin/premium-users.
type PremiumUser struct {
	ID           uuid.UUID                 `json:"id"`
	Username     string                    `json:"username"`
	Email        string                    `json:"email"`
	Subscription domain.Subscription       `json:"subscription"`
	Profession   domain.SelectedProfession `json:"selectedProfession"`
	Settings     domain.TaskSettings       `json:"taskSettings"`
}

// Pagination describes the page a list response holds.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// PremiumUsersResponse is returned by GET /admin/premium-users.
type PremiumUsersResponse struct {
	Data       []PremiumUser `json:"data"`
	Pagination Pagination    `json:"pagination"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Scheduler string `json:"scheduler"`
}

func newCheckCompletedResponse(res assignment.ReconcileResult) CheckCompletedResponse {
	return CheckCompletedResponse{
		Completed:     res.Completed,
		Archived:      res.Archived,
		Failed:        res.Failed,
		AssignedTasks: res.Assignment.AssignedTasks,
	}
}

func newPremiumUsersResponse(p assignment.SubscriberPage) PremiumUsersResponse {
	users := make([]PremiumUser, 0, len(p.Subscribers))
	for _, sub := range p.Subscribers {
		users = append(users, PremiumUser{
			ID:           sub.ID,
			Username:     sub.Username,
			Email:        sub.Email,
			Subscription: sub.Subscription,
			Profession:   sub.Profession,
			Settings:     sub.Settings,
		})
	}
	return PremiumUsersResponse{
		Data:       users,
		Pagination: Pagination{Page: p.Page, Limit: p.Limit, Total: p.Total, Pages: p.Pages},
	}
}
