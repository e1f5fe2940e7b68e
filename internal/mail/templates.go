package mail

import (
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"storefront/internal/model"
)

const shopName = "Sid's Collectibles"

type repairData struct {
	ShopName  string
	RequestID string
	Request   *model.RepairRequest
	Urgent    bool
}

const confirmationText = `Repair Request Confirmation - {{.ShopName}}

Thank you for submitting your repair request. We've received your submission and will review it shortly.

Request ID: {{.RequestID}}

Request Details:
- Name: {{.Request.Name}}
- Email: {{.Request.Email}}
- Phone: {{.Request.Phone}}
- Item Description: {{.Request.ItemDescription}}
- Issue Description: {{.Request.IssueDescription}}
- Preferred Contact Method: {{.Request.PreferredContactMethod}}
- Urgency: {{.Request.Urgency}}

We will contact you within 24-48 hours to discuss your repair request and provide an estimate.
`

const confirmationHTML = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Repair Request Confirmation</title></head>
<body style="font-family: Arial, sans-serif; color: #333;">
<h1>{{.ShopName}}</h1>
<h2>Repair Request Confirmation</h2>
<p>Thank you for submitting your repair request. We've received your submission and will review it shortly.</p>
<p><strong>Request ID:</strong> {{.RequestID}}</p>
<ul>
<li><strong>Name:</strong> {{.Request.Name}}</li>
<li><strong>Email:</strong> {{.Request.Email}}</li>
<li><strong>Phone:</strong> {{.Request.Phone}}</li>
<li><strong>Item Description:</strong> {{.Request.ItemDescription}}</li>
<li><strong>Issue Description:</strong> {{.Request.IssueDescription}}</li>
<li><strong>Preferred Contact Method:</strong> {{.Request.PreferredContactMethod}}</li>
<li><strong>Urgency:</strong> {{.Request.Urgency}}</li>
</ul>
<p>We will contact you within 24-48 hours to discuss your repair request and provide an estimate.</p>
</body>
</html>
`

const notificationText = `New Repair Request - {{.RequestID}}
{{if .Urgent}}
*** URGENT REQUEST ***
{{end}}
Customer Information:
- Name: {{.Request.Name}}
- Email: {{.Request.Email}}
- Phone: {{.Request.Phone}}
- Preferred Contact: {{.Request.PreferredContactMethod}}

Repair Details:
- Item: {{.Request.ItemDescription}}
- Issue: {{.Request.IssueDescription}}
- Urgency: {{.Request.Urgency}}

Action Required: Please review this request and contact the customer within 24 hours.
`

const notificationHTML = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>New Repair Request</title></head>
<body style="font-family: Arial, sans-serif; color: #333;">
<h1>New Repair Request</h1>
<h2>Request ID: {{.RequestID}}</h2>
{{if .Urgent}}<div style="background-color: #fef2f2; border-left: 4px solid #dc2626; padding: 15px;"><strong>URGENT REQUEST</strong></div>{{end}}
<h3>Customer Information:</h3>
<ul>
<li><strong>Name:</strong> {{.Request.Name}}</li>
<li><strong>Email:</strong> {{.Request.Email}}</li>
<li><strong>Phone:</strong> {{.Request.Phone}}</li>
<li><strong>Preferred Contact:</strong> {{.Request.PreferredContactMethod}}</li>
</ul>
<h3>Repair Details:</h3>
<ul>
<li><strong>Item:</strong> {{.Request.ItemDescription}}</li>
<li><strong>Issue:</strong> {{.Request.IssueDescription}}</li>
<li><strong>Urgency:</strong> {{.Request.Urgency}}</li>
</ul>
<p><strong>Action Required:</strong> Please review this request and contact the customer within 24 hours.</p>
</body>
</html>
`

var (
	confirmationTextTmpl = texttemplate.Must(texttemplate.New("confirmation.txt").Parse(confirmationText))
	confirmationHTMLTmpl = htmltemplate.Must(htmltemplate.New("confirmation.html").Parse(confirmationHTML))
	notificationTextTmpl = texttemplate.Must(texttemplate.New("notification.txt").Parse(notificationText))
	notificationHTMLTmpl = htmltemplate.Must(htmltemplate.New("notification.html").Parse(notificationHTML))
)

// rendered is one email's subject and bodies.
type rendered struct {
	Subject string
	Text    string
	HTML    string
}

func renderConfirmation(req *model.RepairRequest, requestID string) (rendered, error) {
	data := repairData{ShopName: shopName, RequestID: requestID, Request: req}
	text, html, err := render(confirmationTextTmpl, confirmationHTMLTmpl, data)
	if err != nil {
		return rendered{}, err
	}
	return rendered{
		Subject: "Repair Request Confirmation - " + shopName,
		Text:    text,
		HTML:    html,
	}, nil
}

func renderNotification(req *model.RepairRequest, requestID string) (rendered, error) {
	data := repairData{ShopName: shopName, RequestID: requestID, Request: req, Urgent: req.Urgent()}
	text, html, err := render(notificationTextTmpl, notificationHTMLTmpl, data)
	if err != nil {
		return rendered{}, err
	}
	subject := "New Repair Request - " + requestID
	if data.Urgent {
		subject = "[URGENT] " + subject
	}
	return rendered{Subject: subject, Text: text, HTML: html}, nil
}

func render(textTmpl *texttemplate.Template, htmlTmpl *htmltemplate.Template, data repairData) (string, string, error) {
	var text, html strings.Builder
	if err := textTmpl.Execute(&text, data); err != nil {
		return "", "", err
	}
	if err := htmlTmpl.Execute(&html, data); err != nil {
		return "", "", err
	}
	return text.String(), html.String(), nil
}
