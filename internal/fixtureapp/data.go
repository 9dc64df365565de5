package fixtureapp

import (
	"strings"

	"github.com/todoqa/todo-e2e/internal/todoapi"
)

// FixtureSize is the number of stored todos, as on JSONPlaceholder.
const FixtureSize = 200

const todosPerUser = 20

// CreatedID is the id every create answers with.
const CreatedID = FixtureSize + 1

var words = []string{
	"delectus", "aut", "autem", "quis", "ut", "nam", "facilis", "et", "officia",
	"qui", "fugiat", "veniam", "sunt", "vero", "laboriosam", "mollitia", "illo",
	"expedita", "porro", "cumque", "harum", "dolorem", "ipsa", "natus", "eius",
	"accusamus", "eos", "doloribus", "libero", "repellendus", "quo", "adipisci",
}

// Fixture returns the 200 stored todos: ten users with twenty todos each,
// deterministic titles and a fixed mix of completed states.
func Fixture() []todoapi.Todo {
	todos := make([]todoapi.Todo, FixtureSize)
	for i := range todos {
		id := i + 1
		todos[i] = todoapi.Todo{
			ID:        id,
			UserID:    i/todosPerUser + 1,
			Title:     title(id),
			Completed: id%3 == 0 || id%7 == 0,
		}
	}
	return todos
}

func title(id int) string {
	n := 3 + id%4
	parts := make([]string, n)
	for j := 0; j < n; j++ {
		parts[j] = words[(id*7+j*5)%len(words)]
	}
	return strings.Join(parts, " ")
}
