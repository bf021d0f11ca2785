// Package orgmode reads backlog items from Org-mode files.
package orgmode

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/harrisonrobin/zenkai/pkg/model"
)

var (
	headlineRegex = regexp.MustCompile(`^\*+\s+(TODO|DOING|DONE|SOMEDAY)\s+(?:\[#([A-Z])\]\s*)?(.*?)(?:\s+:((?:[\w@#%]+:)+))?\s*$`)
	otherHeadline = regexp.MustCompile(`^\*+\s`)
	deadlineRegex = regexp.MustCompile(`DEADLINE:\s+<(\d{4}-\d{2}-\d{2})(?:\s+[A-Za-z]{2,3}\.?)?(?:\s+(\d{1,2}:\d{2}))?[^>]*>`)
	propertyRegex = regexp.MustCompile(`^:([A-Za-z_-]+):\s*(.*)$`)
	planningRegex = regexp.MustCompile(`^(SCHEDULED|CLOSED|DEADLINE):`)
)

// parseFile parses an Org-mode file and returns a slice of tasks.
func parseFile(filePath string, loc *time.Location) ([]model.Task, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	tasks, err := Parse(file, loc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return tasks, nil
}

// ParseFiles parses multiple Org-mode files and returns a slice of tasks.
func ParseFiles(filePaths []string, loc *time.Location) ([]model.Task, error) {
	var allTasks []model.Task
	for _, filePath := range filePaths {
		tasks, err := parseFile(filePath, loc)
		if err != nil {
			return nil, err
		}
		allTasks = append(allTasks, tasks...)
	}
	return allTasks, nil
}

// Parse reads every TODO, DOING, DONE and SOMEDAY headline. Deadlines without
// a time fall at the end of their day in loc. The :EFFORT: property becomes
// the task duration and plain body lines its description.
func Parse(r io.Reader, loc *time.Location) ([]model.Task, error) {
	if loc == nil {
		loc = time.Local
	}
	scanner := bufio.NewScanner(r)
	var tasks []model.Task
	var current *model.Task
	var body []string

	flush := func() {
		if current == nil {
			return
		}
		current.Description = strings.TrimSpace(strings.Join(body, "\n"))
		tasks = append(tasks, *current)
		current, body = nil, nil
	}

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(raw)

		if matches := headlineRegex.FindStringSubmatch(raw); matches != nil {
			flush()
			status, _ := model.ParseStatus(matches[1])
			current = &model.Task{Title: strings.TrimSpace(matches[3]), Status: status}
			if matches[4] != "" {
				current.Tags = strings.Split(strings.Trim(matches[4], ":"), ":")
			}
			continue
		}
		if otherHeadline.MatchString(raw) {
			flush()
			continue
		}
		if current == nil {
			continue
		}

		if planningRegex.MatchString(line) {
			if matches := deadlineRegex.FindStringSubmatch(line); matches != nil {
				deadline, err := parseDeadline(matches[1], matches[2], loc)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				current.Deadline = &deadline
			}
			continue
		}
		if matches := propertyRegex.FindStringSubmatch(line); matches != nil {
			switch strings.ToUpper(matches[1]) {
			case "EFFORT":
				effort, err := parseEffort(matches[2])
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				current.Duration = effort
			case "ID":
				current.ID = strings.TrimSpace(matches[2])
			}
			continue
		}
		body = append(body, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()

	return tasks, nil
}

func parseDeadline(date, clock string, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation(time.DateOnly, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid deadline date %q: %w", date, err)
	}
	if clock == "" {
		return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 0, 0, loc), nil
	}
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid deadline time %q: %w", clock, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
}

// parseEffort accepts H:MM, a Go duration such as 1h30m, or bare minutes.
func parseEffort(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if h, m, ok := strings.Cut(s, ":"); ok {
		hours, err1 := strconv.Atoi(h)
		minutes, err2 := strconv.Atoi(m)
		if err1 != nil || err2 != nil || minutes >= 60 {
			return 0, fmt.Errorf("invalid effort %q", s)
		}
		return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute, nil
	}
	if minutes, err := strconv.Atoi(s); err == nil {
		return time.Duration(minutes) * time.Minute, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid effort %q", s)
	}
	return d, nil
}

// FilterTasks keeps the tasks carrying tag. An empty tag keeps everything.
func FilterTasks(tasks []model.Task, tag string) []model.Task {
	if tag == "" {
		return tasks
	}
	var filteredTasks []model.Task
	for _, task := range tasks {
		if slices.Contains(task.Tags, tag) {
			filteredTasks = append(filteredTasks, task)
		}
	}
	return filteredTasks
}
