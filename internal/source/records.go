package source

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/noah-isme/trip-control-api/internal/dto"
)

// ErrInvalidPayload is returned when the body is not JSON or the records path is not an array.
var ErrInvalidPayload = errors.New("invalid source payload")

// Upstream field names vary between exports; the first non-empty alias wins.
var (
	sourceIDAliases       = []string{"idOrigem", "id", "idViagem", "IdViagem", "codigoViagem"}
	lineCodeAliases       = []string{"codigoLinha", "linha", "NumeroLinha", "codLinha"}
	lineNameAliases       = []string{"nomeLinha", "descricaoLinha", "NomeLinha"}
	serviceAliases        = []string{"servico", "numeroServico", "Servico", "tabela"}
	directionAliases      = []string{"sentido", "Sentido", "sentidoIda", "direcao"}
	sectorAliases         = []string{"setor", "setorPrincipal", "terminal", "localidade"}
	scheduledStartAliases = []string{"inicioPrevisto", "horarioPrevistoInicio", "InicioPrevisto", "horaSaida"}
	actualStartAliases    = []string{"inicioRealizado", "horarioRealizadoInicio", "InicioRealizado"}
	scheduledEndAliases   = []string{"fimPrevisto", "horarioPrevistoFim", "FimPrevisto", "horaChegada"}
	actualEndAliases      = []string{"fimRealizado", "horarioRealizadoFim", "FimRealizado"}
	driverNameAliases     = []string{"nomeMotorista", "motorista", "NomeMotorista"}
	driverBadgeAliases    = []string{"crachaMotorista", "matriculaMotorista", "CrachaMotorista"}
	collectorNameAliases  = []string{"nomeCobrador", "cobrador", "NomeCobrador"}
	collectorBadgeAliases = []string{"crachaCobrador", "matriculaCobrador", "CrachaCobrador"}
	vehicleAliases        = []string{"prefixoVeiculo", "veiculo", "PrefixoVeiculo", "carro"}
)

func first(record gjson.Result, aliases []string) string {
	for _, alias := range aliases {
		if v := record.Get(alias); v.Exists() && v.Type != gjson.Null && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func records(body []byte, path string) ([]gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidPayload
	}
	root := gjson.ParseBytes(body)
	if path != "" {
		root = root.Get(path)
	}
	if !root.IsArray() {
		return nil, fmt.Errorf("%w: %q is not an array", ErrInvalidPayload, path)
	}
	return root.Array(), nil
}

// TransdataRecords maps a Transdata payload into import rows.
func TransdataRecords(body []byte, path string) ([]dto.TransdataTripInput, error) {
	rows, err := records(body, path)
	if err != nil {
		return nil, err
	}
	out := make([]dto.TransdataTripInput, 0, len(rows))
	for _, r := range rows {
		out = append(out, dto.TransdataTripInput{
			SourceID:       dto.FlexString(first(r, sourceIDAliases)),
			LineCode:       dto.FlexString(first(r, lineCodeAliases)),
			LineName:       first(r, lineNameAliases),
			ServiceNumber:  dto.FlexString(first(r, serviceAliases)),
			Direction:      dto.FlexString(first(r, directionAliases)),
			ScheduledStart: first(r, scheduledStartAliases),
			ActualStart:    first(r, actualStartAliases),
			ScheduledEnd:   first(r, scheduledEndAliases),
			ActualEnd:      first(r, actualEndAliases),
			DriverName:     first(r, driverNameAliases),
			DriverBadge:    dto.FlexString(first(r, driverBadgeAliases)),
			CollectorName:  first(r, collectorNameAliases),
			CollectorBadge: dto.FlexString(first(r, collectorBadgeAliases)),
			VehiclePrefix:  dto.FlexString(first(r, vehicleAliases)),
		})
	}
	return out, nil
}

// GlobusRecords maps a Globus payload into import rows.
func GlobusRecords(body []byte, path string) ([]dto.GlobusTripInput, error) {
	rows, err := records(body, path)
	if err != nil {
		return nil, err
	}
	out := make([]dto.GlobusTripInput, 0, len(rows))
	for _, r := range rows {
		out = append(out, dto.GlobusTripInput{
			SourceID:       dto.FlexString(first(r, sourceIDAliases)),
			LineCode:       dto.FlexString(first(r, lineCodeAliases)),
			LineName:       first(r, lineNameAliases),
			ServiceNumber:  dto.FlexString(first(r, serviceAliases)),
			Direction:      dto.FlexString(first(r, directionAliases)),
			Sector:         first(r, sectorAliases),
			ScheduledStart: first(r, scheduledStartAliases),
			ScheduledEnd:   first(r, scheduledEndAliases),
			DriverName:     first(r, driverNameAliases),
			DriverBadge:    dto.FlexString(first(r, driverBadgeAliases)),
			CollectorName:  first(r, collectorNameAliases),
			CollectorBadge: dto.FlexString(first(r, collectorBadgeAliases)),
			VehiclePrefix:  dto.FlexString(first(r, vehicleAliases)),
		})
	}
	return out, nil
}
