package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// Activity statuses. The set is fixed; run-level outcomes such as
// rate_limited travel in the terminal result payload, not here.
const (
	StatusStarted    = "started"
	StatusThinking   = "thinking"
	StatusDelegating = "delegating"
	StatusCompleted  = "completed"
)

// Logical pipeline stages.
const (
	AgentOrchestrator = "orchestrator"
	AgentExtraction   = "extraction"
	AgentGraph        = "graph"
	AgentTutor        = "tutor"
	AgentQuiz         = "quiz"
)

// AgentInfo describes one logical stage for the registry endpoint.
type AgentInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var agents = map[string]AgentInfo{
	AgentOrchestrator: {Name: "PaperForge Orchestrator", Description: "Coordinates the pipeline end to end"},
	AgentExtraction:   {Name: "Extraction Agent", Description: "Extracts concepts and relations from paper text"},
	AgentGraph:        {Name: "Graph Agent", Description: "Builds and maintains the knowledge graph"},
	AgentTutor:        {Name: "Tutor Agent", Description: "Explains key concepts"},
	AgentQuiz:         {Name: "Quiz Agent", Description: "Generates comprehension quizzes"},
}

// Agents returns the stage registry.
func Agents() map[string]AgentInfo {
	out := make(map[string]AgentInfo, len(agents))
	for id, info := range agents {
		out[id] = info
	}
	return out
}

// Activity is one append-only progress record of a pipeline run.
type Activity struct {
	ID        string         `json:"id"`
	AgentID   string         `json:"agent_id"`
	AgentName string         `json:"agent_name"`
	Action    string         `json:"action"`
	Status    string         `json:"status"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Result    map[string]any `json:"result,omitempty"`
}

func newActivity(agentID, action, status, message string, result map[string]any) Activity {
	name := agentID
	if info, ok := agents[agentID]; ok {
		name = info.Name
	}
	return Activity{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		AgentName: name,
		Action:    action,
		Status:    status,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Result:    result,
	}
}

// Terminal reports whether the activity marks the end of its run.
func (a Activity) Terminal() bool {
	return a.AgentID == AgentOrchestrator && a.Status == StatusCompleted
}
