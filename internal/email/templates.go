package email

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

const layoutHTML = `<!DOCTYPE html>
<html>
<head>
<style>
body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
.header { background-color: {{.Accent}}; color: white; padding: 20px; text-align: center; border-radius: 8px 8px 0 0; }
.content { padding: 30px; background-color: #f9f9f9; border-radius: 0 0 8px 8px; }
.highlight { background-color: #fff; border: 1px dashed {{.Accent}}; padding: 15px; text-align: center; margin: 20px 0; font-size: 24px; font-weight: bold; color: {{.Accent}}; }
.footer { margin-top: 30px; font-size: 12px; color: #777; text-align: center; }
</style>
</head>
<body>
<div class="header"><h1>{{.Title}}</h1></div>
<div class="content">
<p>Hi {{.Name}},</p>
{{range .Paragraphs}}<p>{{.}}</p>
{{end}}{{if .Highlight}}<div class="highlight">{{.Highlight}}</div>
{{end}}{{range .Footnotes}}<p>{{.}}</p>
{{end}}<p>Best regards,<br>The {{.AppName}} Team</p>
<div class="footer"><p>&copy; {{.Year}} {{.AppName}}. All rights reserved.</p></div>
</div>
</body>
</html>`

var layout = template.Must(template.New("layout").Parse(layoutHTML))

type layoutData struct {
	AppName    string
	Accent     string
	Title      string
	Name       string
	Paragraphs []string
	Highlight  string
	Footnotes  []string
	Year       int
}

// Templates construye los correos transaccionales de la aplicación.
type Templates struct {
	appName string
	now     func() time.Time
}

func NewTemplates(appName string) *Templates {
	if appName == "" {
		appName = "PaisaPe"
	}
	return &Templates{appName: appName, now: time.Now}
}

func (t *Templates) OTPVerification(to, name, code string, ttl time.Duration) (Message, error) {
	return t.render(to, "OTP Verification - "+t.appName, layoutData{
		Accent: "#4a6bff",
		Title:  "Welcome to " + t.appName,
		Name:   name,
		Paragraphs: []string{
			fmt.Sprintf("Thank you for registering with %s. To complete your registration, please verify your email address using the OTP below:", t.appName),
		},
		Highlight: code,
		Footnotes: []string{
			fmt.Sprintf("This OTP is valid for %d minutes. If you didn't request this, please ignore this email.", minutes(ttl)),
		},
	}, fmt.Sprintf("Your OTP is: %s", code))
}

func (t *Templates) ResendOTP(to, name, code string, ttl time.Duration) (Message, error) {
	return t.render(to, "Resend OTP - "+t.appName, layoutData{
		Accent:     "#4a6bff",
		Title:      "Your New OTP",
		Name:       name,
		Paragraphs: []string{"Here is your new one-time password. Any previous code is no longer valid:"},
		Highlight:  code,
		Footnotes: []string{
			fmt.Sprintf("This OTP is valid for %d minutes.", minutes(ttl)),
		},
	}, fmt.Sprintf("Your new OTP is: %s", code))
}

func (t *Templates) PasswordReset(to, name, code string, ttl time.Duration) (Message, error) {
	return t.render(to, "Password Reset OTP - "+t.appName, layoutData{
		Accent:     "#ff6b6b",
		Title:      "Password Reset",
		Name:       name,
		Paragraphs: []string{"We received a request to reset your password. Use the OTP below to continue:"},
		Highlight:  code,
		Footnotes: []string{
			fmt.Sprintf("This OTP is valid for %d minutes. If you didn't request a reset, you can ignore this email.", minutes(ttl)),
		},
	}, fmt.Sprintf("Your OTP to reset password is: %s", code))
}

func (t *Templates) Welcome(to, name, referralCode string) (Message, error) {
	return t.render(to, "Welcome to "+t.appName+"!", layoutData{
		Accent: "#4CAF50",
		Title:  "Welcome to " + t.appName + "!",
		Name:   name,
		Paragraphs: []string{
			fmt.Sprintf("Congratulations! Your account has been successfully verified and you're now part of the %s community.", t.appName),
			"Invite friends and earn a bonus for each friend who signs up with your code and verifies their email. Your unique referral code:",
		},
		Highlight: referralCode,
	}, fmt.Sprintf("Welcome to %s, %s! Your account has been successfully verified. Your referral code: %s", t.appName, name, referralCode))
}

func (t *Templates) ReferralBonus(to, name, refereeName string, bonus int64) (Message, error) {
	return t.render(to, "You Earned a Referral Bonus!", layoutData{
		Accent: "#FFA500",
		Title:  "You've Earned a Referral Bonus!",
		Name:   name,
		Paragraphs: []string{
			fmt.Sprintf("Congratulations! Your friend %s has successfully joined %s using your referral code.", refereeName, t.appName),
		},
		Highlight: fmt.Sprintf("₹%d credited to your account!", bonus),
		Footnotes: []string{"Keep inviting more friends to earn more rewards."},
	}, fmt.Sprintf("Congratulations %s! You've earned ₹%d for referring %s to %s.", name, bonus, refereeName, t.appName))
}

func (t *Templates) render(to, subject string, data layoutData, text string) (Message, error) {
	data.AppName = t.appName
	data.Year = t.now().Year()
	var buf bytes.Buffer
	if err := layout.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("render %q: %w", subject, err)
	}
	return Message{
		To:      to,
		Subject: subject,
		HTML:    buf.String(),
		Text:    text,
	}, nil
}

func minutes(d time.Duration) int {
	m := int(d / time.Minute)
	if m <= 0 {
		return 1
	}
	return m
}
