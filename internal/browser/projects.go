package browser

import (
	"fmt"
	"sort"
)

// projectDevices maps run projects onto Playwright device descriptors.
var projectDevices = map[string]string{
	"chromium":      "Desktop Chrome",
	"firefox":       "Desktop Firefox",
	"webkit":        "Desktop Safari",
	"mobile-chrome": "Pixel 5",
	"mobile-safari": "iPhone 12",
}

// ProjectNames lists the known projects in a stable order.
func ProjectNames() []string {
	names := make([]string, 0, len(projectDevices))
	for name := range projectDevices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DeviceFor returns the device descriptor name of project.
func DeviceFor(project string) (string, error) {
	device, ok := projectDevices[project]
	if !ok {
		return "", fmt.Errorf("browser: unknown project %q (known: %v)", project, ProjectNames())
	}
	return device, nil
}

// IsMobile reports whether project emulates a phone.
func IsMobile(project string) bool {
	return project == "mobile-chrome" || project == "mobile-safari"
}
