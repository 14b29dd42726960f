// Package color holds the terminal styles of the console report.
//
// Styles use adaptive colors, so they render on dark and light terminals.
// lipgloss downgrades them to the capabilities of the output and honours
// NO_COLOR; Disable turns colors off explicitly, for example when the report
// is written to a file.
//
//	fmt.Println(color.SuccessStyle.Render("success"))
//	fmt.Println(color.FailureStyle.Render("failure"))
package color
