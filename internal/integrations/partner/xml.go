package partner

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Dan9191/loan-service/internal/models"
	"github.com/beevik/etree"
)

const dateLayout = "2006-01-02"

// ParseXML decodes a partner batch delivered as XML:
//
//	<partnerIngest partnerId="acme" applicationId="LN-2026-00000001">
//	  <loanContext declaredIncome="12000" loanAmount="30000" tenureMonths="12" purpose="education"/>
//	  <bankStatement date="2026-01-05" credit="1200" debit="0" balance="5000"/>
//	  <recharge date="2026-01-07" amount="199"/>
//	  <electricityBill date="2026-01-10" amount="850" late="false"/>
//	  <educationFee date="2026-01-15" amount="4000" late="true"/>
//	  <repayment loanRef="L1" dueDate="2025-11-01" paidDate="2025-11-03" amountDue="1000" amountPaid="1000" paid="true" late="true" daysLate="2"/>
//	</partnerIngest>
func ParseXML(raw []byte) (*models.PartnerIngestRequest, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %v", err)
	}
	root := doc.SelectElement("partnerIngest")
	if root == nil {
		return nil, fmt.Errorf("partnerIngest root element not found")
	}

	p := &attrParser{}
	req := &models.PartnerIngestRequest{
		PartnerID:     root.SelectAttrValue("partnerId", ""),
		ApplicationID: root.SelectAttrValue("applicationId", ""),
	}
	if v := root.SelectAttrValue("beneficiaryUserId", ""); v != "" {
		req.BeneficiaryUserID = p.intAttr(root, "beneficiaryUserId")
	}

	if lc := root.SelectElement("loanContext"); lc != nil {
		req.LoanContext = &models.LoanContext{
			DeclaredIncome: p.floatAttr(lc, "declaredIncome"),
			LoanAmount:     p.floatAttr(lc, "loanAmount"),
			TenureMonths:   int(p.intAttr(lc, "tenureMonths")),
			Purpose:        lc.SelectAttrValue("purpose", ""),
		}
	}

	for _, el := range root.SelectElements("bankStatement") {
		req.Signals.BankStatements = append(req.Signals.BankStatements, models.BankStatement{
			Date:    p.dateAttr(el, "date"),
			Credit:  p.floatAttr(el, "credit"),
			Debit:   p.floatAttr(el, "debit"),
			Balance: p.floatAttr(el, "balance"),
		})
	}
	for _, el := range root.SelectElements("recharge") {
		req.Signals.Recharges = append(req.Signals.Recharges, models.RechargeRecord{
			Date:   p.dateAttr(el, "date"),
			Amount: p.floatAttr(el, "amount"),
		})
	}
	for _, el := range root.SelectElements("electricityBill") {
		req.Signals.Electricity = append(req.Signals.Electricity, models.ElectricityBill{
			BillDate: p.dateAttr(el, "date"),
			Amount:   p.floatAttr(el, "amount"),
			IsLate:   p.boolAttr(el, "late"),
		})
	}
	for _, el := range root.SelectElements("educationFee") {
		req.Signals.Education = append(req.Signals.Education, models.EducationFee{
			PaymentDate: p.dateAttr(el, "date"),
			Amount:      p.floatAttr(el, "amount"),
			IsLate:      p.boolAttr(el, "late"),
		})
	}
	for _, el := range root.SelectElements("repayment") {
		rec := models.RepaymentRecord{
			LoanRef:    el.SelectAttrValue("loanRef", ""),
			DueDate:    p.dateAttr(el, "dueDate"),
			AmountDue:  p.floatAttr(el, "amountDue"),
			AmountPaid: p.floatAttr(el, "amountPaid"),
			Paid:       p.boolAttr(el, "paid"),
			IsLate:     p.boolAttr(el, "late"),
			DaysLate:   int(p.intAttr(el, "daysLate")),
		}
		if el.SelectAttrValue("paidDate", "") != "" {
			paid := p.dateAttr(el, "paidDate")
			rec.PaidDate = &paid
		}
		req.Signals.Repayments = append(req.Signals.Repayments, rec)
	}

	if p.err != nil {
		return nil, p.err
	}
	return req, nil
}

// attrParser keeps the first conversion error so call sites stay flat.
type attrParser struct {
	err error
}

func (p *attrParser) fail(el *etree.Element, attr string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s/@%s: %v", el.Tag, attr, err)
	}
}

func (p *attrParser) floatAttr(el *etree.Element, attr string) float64 {
	raw := el.SelectAttrValue(attr, "")
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(el, attr, err)
	}
	return v
}

func (p *attrParser) intAttr(el *etree.Element, attr string) int64 {
	raw := el.SelectAttrValue(attr, "")
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		p.fail(el, attr, err)
	}
	return v
}

func (p *attrParser) boolAttr(el *etree.Element, attr string) bool {
	raw := el.SelectAttrValue(attr, "")
	if raw == "" {
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(el, attr, err)
	}
	return v
}

func (p *attrParser) dateAttr(el *etree.Element, attr string) time.Time {
	raw := el.SelectAttrValue(attr, "")
	v, err := time.Parse(dateLayout, raw)
	if err != nil {
		p.fail(el, attr, err)
	}
	return v
}
