package mail

import (
	"fmt"
	"strings"
	"text/template"
	"time"
)

// Template data and rendering for the transactional mails the service sends.

var (
	signInCodeTmpl = template.Must(template.New("sign_in_code").Parse(
		`Your sign-in code is {{.Code}}.

It expires in {{.TTLMinutes}} minutes. If you did not request it, ignore this mail.
`))

	inviteTmpl = template.Must(template.New("invite").Parse(
		`You have been invited to join {{.LibraryName}} as {{.Role}}.

Accept the invitation: {{.AcceptURL}}

The link expires on {{.ExpiresAt}}.
`))

	borrowReceiptTmpl = template.Must(template.New("borrow_receipt").Parse(
		`You borrowed "{{.Title}}".

Please return it by {{.DueDate}}.
`))

	dueSoonTmpl = template.Must(template.New("due_soon").Parse(
		`Reminder: "{{.Title}}" is due on {{.DueDate}}.

Return or extend it before then to avoid an overdue block on further borrowing.
`))

	overdueTmpl = template.Must(template.New("overdue").Parse(
		`"{{.Title}}" was due on {{.DueDate}} and is now {{.DaysLate}} day(s) late.

Please return it. Borrowing is blocked while you have overdue books.
`))

	decisionTmpl = template.Must(template.New("decision").Parse(
		`Your {{.Kind}} for "{{.Title}}" was {{.Decision}}.
`))
)

func render(t *template.Template, data interface{}) string {
	var b strings.Builder
	// Templates are static and data is typed; an error here is a programming
	// bug surfaced by tests.
	if err := t.Execute(&b, data); err != nil {
		panic(err)
	}
	return b.String()
}

// SignInCode builds the sign-in code mail.
func SignInCode(to, code string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: "Your sign-in code",
		Body: render(signInCodeTmpl, map[string]interface{}{
			"Code":       code,
			"TTLMinutes": int(ttl.Minutes()),
		}),
	}
}

// Invite builds the membership invitation mail.
func Invite(to, libraryName, role, acceptURL string, expiresAt time.Time) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Invitation to join %s", libraryName),
		Body: render(inviteTmpl, map[string]interface{}{
			"LibraryName": libraryName,
			"Role":        role,
			"AcceptURL":   acceptURL,
			"ExpiresAt":   expiresAt.Format("02 Jan 2006"),
		}),
	}
}

// BorrowReceipt builds the borrow confirmation mail.
func BorrowReceipt(to, title string, dueDate time.Time) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Borrowed: %s", title),
		Body: render(borrowReceiptTmpl, map[string]interface{}{
			"Title":   title,
			"DueDate": dueDate.Format("02 Jan 2006"),
		}),
	}
}

// DueSoon builds the due-date reminder mail.
func DueSoon(to, title string, dueDate time.Time) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Due soon: %s", title),
		Body: render(dueSoonTmpl, map[string]interface{}{
			"Title":   title,
			"DueDate": dueDate.Format("02 Jan 2006"),
		}),
	}
}

// Overdue builds the overdue notice mail.
func Overdue(to, title string, dueDate time.Time, daysLate int) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Overdue: %s", title),
		Body: render(overdueTmpl, map[string]interface{}{
			"Title":    title,
			"DueDate":  dueDate.Format("02 Jan 2006"),
			"DaysLate": daysLate,
		}),
	}
}

// Decision builds the request/donation decision mail. kind is "request" or
// "donation"; decision is the resulting status.
func Decision(to, kind, title, decision string) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Your %s was %s", kind, decision),
		Body: render(decisionTmpl, map[string]interface{}{
			"Kind":     kind,
			"Title":    title,
			"Decision": decision,
		}),
	}
}
